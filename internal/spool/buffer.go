// Package spool provides output buffers that hold command output in memory
// until it grows past a threshold, then spill transparently to a temporary
// file. Callers capture potentially huge command output without committing
// unbounded memory to it.
package spool

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultMemoryLimit is the number of bytes a buffer holds in memory before
// spilling to disk.
const DefaultMemoryLimit = 10 * 1024 * 1024

const (
	spillFilePatternConstant      = "rex-spool-*"
	bufferClosedMessageConstant   = "spool buffer is closed"
	spillFailureTemplateConstant  = "unable to spill buffer to disk: %w"
	rewindFailureTemplateConstant = "unable to rewind spill file: %w"
	maximumLineSizeConstant       = 1 << 20
)

// ErrBufferClosed reports writes or reads against a closed buffer.
var ErrBufferClosed = errors.New(bufferClosedMessageConstant)

// Options configures buffer construction.
type Options struct {
	// MemoryLimit overrides DefaultMemoryLimit when positive.
	MemoryLimit int64
	// Directory receives spill files; empty selects the system temp directory.
	Directory string
}

// Buffer accumulates written bytes in memory and moves them to a temporary
// file once the memory limit is exceeded. Buffers are not safe for concurrent
// use; give each output stream its own buffer.
type Buffer struct {
	memoryLimit  int64
	directory    string
	memory       bytes.Buffer
	spillFile    *os.File
	writtenBytes int64
	closed       bool
}

// NewBuffer constructs a buffer honoring the provided options.
func NewBuffer(options Options) *Buffer {
	memoryLimit := options.MemoryLimit
	if memoryLimit <= 0 {
		memoryLimit = DefaultMemoryLimit
	}
	return &Buffer{memoryLimit: memoryLimit, directory: options.Directory}
}

// Write appends payload to the buffer, spilling to disk when the in-memory
// size would exceed the limit.
func (buffer *Buffer) Write(payload []byte) (int, error) {
	if buffer.closed {
		return 0, ErrBufferClosed
	}

	if buffer.spillFile == nil && int64(buffer.memory.Len())+int64(len(payload)) > buffer.memoryLimit {
		if spillError := buffer.spill(); spillError != nil {
			return 0, spillError
		}
	}

	if buffer.spillFile != nil {
		writtenCount, writeError := buffer.spillFile.Write(payload)
		buffer.writtenBytes += int64(writtenCount)
		return writtenCount, writeError
	}

	writtenCount, _ := buffer.memory.Write(payload)
	buffer.writtenBytes += int64(writtenCount)
	return writtenCount, nil
}

func (buffer *Buffer) spill() error {
	spillFile, createError := os.CreateTemp(buffer.directory, spillFilePatternConstant)
	if createError != nil {
		return fmt.Errorf(spillFailureTemplateConstant, createError)
	}
	if _, copyError := spillFile.Write(buffer.memory.Bytes()); copyError != nil {
		spillFile.Close()
		os.Remove(spillFile.Name())
		return fmt.Errorf(spillFailureTemplateConstant, copyError)
	}
	buffer.memory.Reset()
	buffer.spillFile = spillFile
	return nil
}

// Len reports the total number of bytes written.
func (buffer *Buffer) Len() int64 {
	return buffer.writtenBytes
}

// Spilled reports whether the buffer contents moved to disk.
func (buffer *Buffer) Spilled() bool {
	return buffer.spillFile != nil
}

// Lines replays the buffered content line by line, trimming surrounding
// whitespace from each line. The buffer remains appendable afterwards.
func (buffer *Buffer) Lines(emit func(line string)) error {
	if buffer.closed {
		return ErrBufferClosed
	}

	contentReader, restore, readerError := buffer.contentReader()
	if readerError != nil {
		return readerError
	}
	defer restore()

	lineScanner := bufio.NewScanner(contentReader)
	lineScanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maximumLineSizeConstant)
	for lineScanner.Scan() {
		emit(strings.TrimSpace(lineScanner.Text()))
	}
	return lineScanner.Err()
}

// WriteTo copies the buffered content to destination. The buffer remains
// appendable afterwards.
func (buffer *Buffer) WriteTo(destination io.Writer) (int64, error) {
	if buffer.closed {
		return 0, ErrBufferClosed
	}

	contentReader, restore, readerError := buffer.contentReader()
	if readerError != nil {
		return 0, readerError
	}
	defer restore()

	return io.Copy(destination, contentReader)
}

// contentReader exposes the accumulated bytes for reading and returns a
// restore function that repositions the spill file for further appends.
func (buffer *Buffer) contentReader() (io.Reader, func(), error) {
	if buffer.spillFile == nil {
		return bytes.NewReader(buffer.memory.Bytes()), func() {}, nil
	}

	if _, seekError := buffer.spillFile.Seek(0, io.SeekStart); seekError != nil {
		return nil, nil, fmt.Errorf(rewindFailureTemplateConstant, seekError)
	}
	restore := func() {
		buffer.spillFile.Seek(0, io.SeekEnd)
	}
	return buffer.spillFile, restore, nil
}

// Close releases the spill file, if any. Closing twice is harmless; writes
// after Close fail with ErrBufferClosed.
func (buffer *Buffer) Close() error {
	if buffer.closed {
		return nil
	}
	buffer.closed = true
	buffer.memory.Reset()

	if buffer.spillFile == nil {
		return nil
	}
	closeError := buffer.spillFile.Close()
	removeError := os.Remove(buffer.spillFile.Name())
	buffer.spillFile = nil
	if closeError != nil {
		return closeError
	}
	return removeError
}
