package logger

import (
	"bytes"
	"sync"
)

// Ring keeps the most recent log lines in memory so the HTTP surface can
// serve them without touching the log file. Oldest lines are dropped once
// capacity is reached.
type Ring struct {
	mu    sync.Mutex
	lines []string
	head  int
	count int
	buf   bytes.Buffer
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 500
	}
	return &Ring{lines: make([]string, capacity)}
}

// Write implements io.Writer; it splits the stream on newlines and records
// each complete line. A partial line is held until its newline arrives.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.Write(p)
	for {
		data := r.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(data[:idx])
		r.buf.Next(idx + 1)
		if line == "" {
			continue
		}
		r.append(line)
	}
	return len(p), nil
}

func (r *Ring) append(line string) {
	if r.count < len(r.lines) {
		r.lines[(r.head+r.count)%len(r.lines)] = line
		r.count++
		return
	}
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
}

// Tail returns up to limit of the most recent lines, oldest first.
func (r *Ring) Tail(limit int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		return []string{}
	}
	n := r.count
	if limit < n {
		n = limit
	}
	out := make([]string, 0, n)
	start := r.count - n
	for i := start; i < r.count; i++ {
		out = append(out, r.lines[(r.head+i)%len(r.lines)])
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
