package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

type Bar struct {
	Name      string
	Total     int64 // -1 when unknown
	Completed int64
	Width     int
	Status    string
	Done      bool

	mu sync.Mutex
	mp *MultiBar
}

func (b *Bar) Write(w io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Width == 0 {
		b.Width = 40
	}
	completed, status := 0, b.Status
	switch {
	case b.Done:
		completed = b.Width
	case b.Total > 0:
		completed = int(float64(b.Width) * float64(b.Completed) / float64(b.Total))
		if completed > b.Width {
			completed = b.Width
		}
		status = HumanSize(float64(b.Completed)) + "/" + HumanSize(float64(b.Total))
	}
	fmt.Fprintf(w, "%s [%s%s] %s\n",
		b.Name,
		strings.Repeat("+", completed),
		strings.Repeat("-", b.Width-completed),
		status,
	)
}

func (b *Bar) SetProgress(completed, total int64) {
	b.mu.Lock()
	b.Completed, b.Total = completed, total
	b.mu.Unlock()
	b.notify()
}

func (b *Bar) SetStatus(name, status string) {
	b.mu.Lock()
	b.Name, b.Status = name, status
	b.mu.Unlock()
	b.notify()
}

func (b *Bar) increment(n int64) {
	b.mu.Lock()
	b.Completed += int64(n)
	b.mu.Unlock()
	b.notify()
}

func (b *Bar) finish() {
	b.mu.Lock()
	b.Done = true
	b.mu.Unlock()
	b.notify()
}

func (b *Bar) notify() {
	if b.mp != nil {
		b.mp.markChanged()
	}
}

// WrapReader counts bytes read from rc against total. The status switches to
// onComplete when rc hits EOF and to onFailed on any other read error.
func (b *Bar) WrapReader(rc io.ReadCloser, name string, total int64, onProcess, onComplete, onFailed string) io.ReadCloser {
	b.mu.Lock()
	b.Name, b.Total, b.Completed, b.Status = name, total, 0, onProcess
	b.mu.Unlock()
	b.notify()
	return &barReader{rc: rc, b: b, onComplete: onComplete, onFailed: onFailed}
}

type barReader struct {
	rc         io.ReadCloser
	b          *Bar
	onComplete string
	onFailed   string
}

func (r *barReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	r.b.increment(int64(n))
	switch {
	case err == io.EOF:
		r.b.SetStatus(r.b.Name, r.onComplete)
	case err != nil:
		r.b.SetStatus(r.b.Name, r.onFailed)
	}
	return n, err
}

func (r *barReader) Close() error {
	return r.rc.Close()
}
