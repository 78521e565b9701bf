package types

import (
	"os"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
)

const (
	MediaTypeServableManifestJson = "application/vnd.servex.servable.manifest.v1.json"
	MediaTypeServableConfigYaml   = "application/vnd.servex.servable.config.v1.yaml"
	MediaTypeServableGraphOnnx    = "application/vnd.servex.servable.graph.v1.onnx"
	MediaTypeServableLabels       = "application/vnd.servex.servable.labels.v1.txt"
	MediaTypeServableFile         = "application/vnd.servex.servable.file.v1"
)

const (
	AnnotationArchitecture = "servex.servable.architecture"
	AnnotationCheckpoint   = "servex.servable.checkpoint"
	AnnotationCreated      = "servex.servable.created"
)

type Descriptor struct {
	Name        string            `json:"name"`
	MediaType   string            `json:"mediaType,omitempty"`
	Digest      digest.Digest     `json:"digest,omitempty"`
	Size        int64             `json:"size,omitempty"`
	Mode        os.FileMode       `json:"mode,omitempty"`
	Modified    time.Time         `json:"modified,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

func SortDescriptorName(a, b Descriptor) bool {
	return strings.Compare(a.Name, b.Name) < 0
}

// Manifest lists every file of an exported servable. Config points at servable.yaml.
type Manifest struct {
	SchemaVersion int               `json:"schemaVersion"`
	MediaType     string            `json:"mediaType,omitempty"`
	Config        Descriptor        `json:"config"`
	Blobs         []Descriptor      `json:"blobs"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

// All returns the config descriptor followed by the blobs.
func (m Manifest) All() []Descriptor {
	all := make([]Descriptor, 0, len(m.Blobs)+1)
	all = append(all, m.Config)
	return append(all, m.Blobs...)
}

type PredictRequest struct {
	Images [][]byte `json:"images"`
}

type PredictResponse struct {
	Classes       [][]int64   `json:"classes"`
	Probabilities [][]float32 `json:"probabilities"`
	Labels        [][]string  `json:"labels,omitempty"`
}
