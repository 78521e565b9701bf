package checkpoint

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"kubegems.io/servex/pkg/errors"
)

const (
	GraphExtension = ".onnx"
	LabelsFileName = "labels.txt"
)

// Checkpoint is an extracted pretrained model: one graph file plus optional labels.
type Checkpoint struct {
	Dir    string
	Graph  string
	Labels string
}

// Locate finds the graph and labels file under dir. Hidden entries are ignored.
func Locate(dir string) (Checkpoint, error) {
	ckpt := Checkpoint{Dir: dir}
	graphs := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case strings.EqualFold(filepath.Ext(path), GraphExtension):
			graphs = append(graphs, path)
		case d.Name() == LabelsFileName && ckpt.Labels == "":
			ckpt.Labels = path
		}
		return nil
	})
	if err != nil {
		return Checkpoint{}, err
	}
	switch len(graphs) {
	case 0:
		return Checkpoint{}, errors.NewCheckpointInvalidError("no " + GraphExtension + " graph found in " + dir)
	case 1:
		ckpt.Graph = graphs[0]
	default:
		return Checkpoint{}, errors.NewCheckpointInvalidError("multiple graphs found in " + dir + ": " + strings.Join(graphs, ", "))
	}
	return ckpt, nil
}

// ReadLabels reads one label per line, keeping empty lines so indices stay aligned.
func ReadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	labels := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	// trailing blank lines are not labels
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	return labels, nil
}
