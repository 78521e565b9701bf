package progress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 5

type MultiBar struct {
	w               io.Writer
	width           int
	lastWrittenRows int
	bars            []*Bar
	barslock        sync.Mutex
	eg              *errgroup.Group

	haschange bool
}

func NewMultiBar(dest io.Writer, width int, concurrent int) *MultiBar {
	if concurrent <= 0 {
		concurrent = DefaultConcurrency
	}
	mb := &MultiBar{
		width: width,
		w:     dest,
		eg:    &errgroup.Group{},
	}
	mb.eg.SetLimit(concurrent)
	return mb
}

func (m *MultiBar) print() {
	m.barslock.Lock()
	defer m.barslock.Unlock()

	buf := &bytes.Buffer{}

	// move cursor up over the rows written last time
	if m.lastWrittenRows > 0 {
		fmt.Fprintf(buf, "\033[%dA\033[J", m.lastWrittenRows)
	}
	for _, b := range m.bars {
		b.Write(buf)
	}
	_, _ = m.w.Write(buf.Bytes())
	m.lastWrittenRows = len(m.bars)
	m.haschange = false
}

func (m *MultiBar) Run(ctx context.Context) {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.barslock.Lock()
			changed := m.haschange
			m.barslock.Unlock()
			if changed {
				m.print()
			}
		}
	}
}

func (m *MultiBar) markChanged() {
	m.barslock.Lock()
	m.haschange = true
	m.barslock.Unlock()
}

func (m *MultiBar) Go(name string, initstatus string, fun func(b *Bar) error) {
	bar := &Bar{
		mp:     m,
		Name:   name,
		Status: initstatus,
		Width:  m.width,
	}
	m.barslock.Lock()
	m.bars = append(m.bars, bar)
	m.barslock.Unlock()
	m.print()

	m.eg.Go(func() error {
		if err := fun(bar); err != nil {
			bar.SetStatus(bar.Name, "failed")
			bar.finish()
			return err
		}
		bar.finish()
		return nil
	})
}

// Wait blocks until every bar finished and flushes the final frame.
func (m *MultiBar) Wait() error {
	err := m.eg.Wait()
	m.print()
	return err
}
