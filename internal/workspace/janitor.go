package workspace

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

const (
	signalReceivedMessageConstant  = "termination signal received, sweeping workspaces"
	sweepCompletedMessageConstant  = "workspace sweep completed"
	sweepFailureMessageConstant    = "workspace sweep failed to remove directory"
	signalFieldNameConstant        = "signal"
	trackedCountFieldNameConstant  = "tracked"
	signalExitCodeOffsetConstant   = 128
	fallbackSignalExitCodeConstant = 1
	signalChannelCapacityConstant  = 1
)

// Janitor tracks acquired workspace directories and removes whichever are
// still alive when the process is told to stop. It is the explicit owner of
// cleanup responsibility; callers construct one and thread it to wherever
// workspaces are needed.
type Janitor struct {
	logger      *zap.Logger
	mutex       sync.Mutex
	directories []*ScopedDirectory
	exitFunc    func(code int)
}

// NewJanitor constructs a janitor. A nil logger is replaced with a no-op
// logger.
func NewJanitor(logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{logger: logger, exitFunc: os.Exit}
}

func (janitor *Janitor) track(directory *ScopedDirectory) {
	janitor.mutex.Lock()
	defer janitor.mutex.Unlock()
	janitor.directories = append(janitor.directories, directory)
}

func (janitor *Janitor) forget(directory *ScopedDirectory) {
	janitor.mutex.Lock()
	defer janitor.mutex.Unlock()
	for directoryIndex, trackedDirectory := range janitor.directories {
		if trackedDirectory == directory {
			janitor.directories = append(janitor.directories[:directoryIndex], janitor.directories[directoryIndex+1:]...)
			return
		}
	}
}

// TrackedCount reports how many directories are currently awaiting release.
func (janitor *Janitor) TrackedCount() int {
	janitor.mutex.Lock()
	defer janitor.mutex.Unlock()
	return len(janitor.directories)
}

// Sweep releases every tracked directory, newest first, and returns the first
// removal failure after attempting all of them.
func (janitor *Janitor) Sweep() error {
	janitor.mutex.Lock()
	trackedDirectories := make([]*ScopedDirectory, len(janitor.directories))
	copy(trackedDirectories, janitor.directories)
	janitor.mutex.Unlock()

	var firstSweepError error
	for directoryIndex := len(trackedDirectories) - 1; directoryIndex >= 0; directoryIndex-- {
		directory := trackedDirectories[directoryIndex]
		if releaseError := directory.Release(); releaseError != nil {
			janitor.logger.Warn(sweepFailureMessageConstant,
				zap.String(directoryPathFieldNameConstant, directory.Path()),
				zap.Error(releaseError),
			)
			if firstSweepError == nil {
				firstSweepError = releaseError
			}
		}
	}
	return firstSweepError
}

// WatchSignals installs a best-effort handler that sweeps tracked workspaces
// and exits when one of the provided signals arrives. Without arguments it
// watches SIGINT and SIGTERM. The returned function uninstalls the handler.
func (janitor *Janitor) WatchSignals(signals ...os.Signal) func() {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	signalChannel := make(chan os.Signal, signalChannelCapacityConstant)
	signal.Notify(signalChannel, signals...)
	go func() {
		receivedSignal, channelOpen := <-signalChannel
		if !channelOpen {
			return
		}
		janitor.handleSignal(receivedSignal)
	}()

	return func() {
		signal.Stop(signalChannel)
		close(signalChannel)
	}
}

func (janitor *Janitor) handleSignal(receivedSignal os.Signal) {
	janitor.logger.Warn(signalReceivedMessageConstant,
		zap.String(signalFieldNameConstant, receivedSignal.String()),
		zap.Int(trackedCountFieldNameConstant, janitor.TrackedCount()),
	)
	janitor.Sweep()
	janitor.logger.Info(sweepCompletedMessageConstant)
	janitor.exitFunc(exitCodeForSignal(receivedSignal))
}

func exitCodeForSignal(receivedSignal os.Signal) int {
	if systemSignal, isSystemSignal := receivedSignal.(syscall.Signal); isSystemSignal {
		return signalExitCodeOffsetConstant + int(systemSignal)
	}
	return fallbackSignalExitCodeConstant
}
