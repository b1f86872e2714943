package spool

import (
	"go.uber.org/zap"
)

const (
	commandFailureMessageConstant  = "command produced captured output before failing"
	standardOutputHeadingConstant  = "standard output"
	standardErrorHeadingConstant   = "standard error"
	capturedLineMessageConstant    = "captured"
	commandLabelFieldNameConstant  = "command"
	streamFieldNameConstant        = "stream"
	standardOutputStreamNameValue  = "stdout"
	standardErrorStreamNameValue   = "stderr"
	capturedLineFieldNameConstant  = "line"
	capturedBytesFieldNameConstant = "bytes"
)

// CaptureSet pairs spooled buffers for a command's standard output and
// standard error streams.
type CaptureSet struct {
	Stdout *Buffer
	Stderr *Buffer
}

// NewCaptureSet constructs buffers for both output streams using shared
// options.
func NewCaptureSet(options Options) *CaptureSet {
	return &CaptureSet{Stdout: NewBuffer(options), Stderr: NewBuffer(options)}
}

// DumpOnFailure replays both captured streams into the logger at warn level so
// failures leave their output in the log even though the command ran quietly.
func (captureSet *CaptureSet) DumpOnFailure(logger *zap.Logger, commandLabel string, failure error) error {
	if logger == nil {
		return nil
	}

	logger.Warn(commandFailureMessageConstant,
		zap.String(commandLabelFieldNameConstant, commandLabel),
		zap.Error(failure),
	)

	logger.Warn(standardOutputHeadingConstant,
		zap.String(commandLabelFieldNameConstant, commandLabel),
		zap.Int64(capturedBytesFieldNameConstant, captureSet.Stdout.Len()),
	)
	if dumpError := captureSet.dumpStream(logger, captureSet.Stdout, standardOutputStreamNameValue); dumpError != nil {
		return dumpError
	}

	logger.Warn(standardErrorHeadingConstant,
		zap.String(commandLabelFieldNameConstant, commandLabel),
		zap.Int64(capturedBytesFieldNameConstant, captureSet.Stderr.Len()),
	)
	return captureSet.dumpStream(logger, captureSet.Stderr, standardErrorStreamNameValue)
}

func (captureSet *CaptureSet) dumpStream(logger *zap.Logger, buffer *Buffer, streamName string) error {
	return buffer.Lines(func(line string) {
		if len(line) == 0 {
			return
		}
		logger.Warn(capturedLineMessageConstant,
			zap.String(streamFieldNameConstant, streamName),
			zap.String(capturedLineFieldNameConstant, line),
		)
	})
}

// Close releases both buffers, reporting the first failure encountered.
func (captureSet *CaptureSet) Close() error {
	stdoutCloseError := captureSet.Stdout.Close()
	stderrCloseError := captureSet.Stderr.Close()
	if stdoutCloseError != nil {
		return stdoutCloseError
	}
	return stderrCloseError
}
