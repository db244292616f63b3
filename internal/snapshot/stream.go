package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
)

// MaxLineBytes caps a single encoded event. Full-window dumps of the
// monitored app are a few hundred KiB.
const MaxLineBytes = 8 << 20

// ErrLineTooLong reports an event line over MaxLineBytes. The line is
// discarded and reading resumes at the next one.
var ErrLineTooLong = errors.New("event line too long")

var errNilNode = errors.New("nil node")

// wireEvent is the JSON form of a host event.
type wireEvent struct {
	Kind    string `json:"kind"`
	Package string `json:"package"`
	Tree    *Node  `json:"tree,omitempty"`
}

// ParseEvent decodes one JSON line into a domain event.
func ParseEvent(line []byte) (domain.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}

	kind := domain.EventKind(strings.ToUpper(strings.TrimSpace(w.Kind)))
	switch kind {
	case domain.EventForegroundChanged, domain.EventContentChanged:
	default:
		return domain.Event{}, fmt.Errorf("unknown event kind %q", w.Kind)
	}

	tree := w.Tree
	return domain.Event{
		Kind:    kind,
		Package: w.Package,
		Snapshot: func() (domain.UINode, error) {
			if tree == nil {
				return nil, nil
			}
			return tree, nil
		},
	}, nil
}

// StreamSource reads JSON-lines events from a reader (stdin, a FIFO fed by
// the device bridge, or a recorded session).
type StreamSource struct {
	r       io.Reader
	maxLine int
	logger  *zap.Logger
}

// NewStreamSource creates an event source over r.
func NewStreamSource(r io.Reader, logger *zap.Logger) *StreamSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamSource{r: r, maxLine: MaxLineBytes, logger: logger}
}

// Events implements domain.EventSource. Malformed lines are reported on the
// error channel and skipped. Both channels close when the reader is exhausted
// or ctx is canceled.
func (s *StreamSource) Events(ctx context.Context) (<-chan domain.Event, <-chan error) {
	events := make(chan domain.Event)
	errs := make(chan error, 16)

	go func() {
		defer close(events)
		defer close(errs)

		br := bufio.NewReaderSize(s.r, 64*1024)
		lineNo := 0
		for {
			line, err := readLine(br, s.maxLine)
			if errors.Is(err, ErrLineTooLong) {
				lineNo++
				s.logger.Warn("skipping oversized event", zap.Int("line", lineNo), zap.Int("limit", s.maxLine))
				s.report(errs, fmt.Errorf("line %d: %w", lineNo, err))
				continue
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.logger.Error("event stream read failed", zap.Int("line", lineNo), zap.Error(err))
					s.report(errs, fmt.Errorf("read events: %w", err))
				}
				return
			}
			lineNo++
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			ev, err := ParseEvent(line)
			if err != nil {
				s.logger.Warn("skipping malformed event", zap.Int("line", lineNo), zap.Error(err))
				s.report(errs, fmt.Errorf("line %d: %w", lineNo, err))
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed in full and reported as ErrLineTooLong.
func readLine(br *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	size := 0
	for {
		chunk, err := br.ReadSlice('\n')
		size += len(chunk)
		if size <= limit+2 {
			line = append(line, chunk...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && (size == 0 || !errors.Is(err, io.EOF)) {
			return nil, err
		}
		break
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if size > limit+2 || len(line) > limit {
		return nil, ErrLineTooLong
	}
	return line, nil
}

// report never blocks the reader on a slow error consumer.
func (s *StreamSource) report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// Ensure StreamSource implements domain.EventSource.
var _ domain.EventSource = (*StreamSource)(nil)

// Ensure Node implements domain.UINode.
var _ domain.UINode = (*Node)(nil)
