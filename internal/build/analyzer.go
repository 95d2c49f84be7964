package build

import (
	"context"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/conneroisu/isle/internal/deps"
	"github.com/conneroisu/isle/internal/logging"
)

// AnalyzerFactory connects a build to an analysis worker. The connection is
// closed when the session closes.
type AnalyzerFactory func(ctx context.Context, session *Session) (deps.Conn, error)

// InlineAnalyzer runs the analyzer on a goroutine of this process.
func InlineAnalyzer(fs afero.Fs, sourceRoot string, logger logging.Logger) AnalyzerFactory {
	return func(ctx context.Context, session *Session) (deps.Conn, error) {
		return deps.InProcess(ctx, deps.NewAnalyzer(fs, sourceRoot), logger), nil
	}
}

// ProcessAnalyzer starts cfg as a child process for every build. The child
// dies with the build context.
func ProcessAnalyzer(cfg deps.ProcessConfig) AnalyzerFactory {
	return func(ctx context.Context, session *Session) (deps.Conn, error) {
		p, err := deps.StartProcess(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// SelfAnalyzer re-executes the running isle binary with the hidden analyze
// command.
func SelfAnalyzer(sourceRoot string, stderr io.Writer) (AnalyzerFactory, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return ProcessAnalyzer(deps.ProcessConfig{
		Path:   exe,
		Args:   []string{"analyze", "--root", sourceRoot},
		Stderr: stderr,
	}), nil
}

// WebSocketAnalyzer dials a worker served by `isle analyze --listen`.
func WebSocketAnalyzer(url string) AnalyzerFactory {
	return func(ctx context.Context, session *Session) (deps.Conn, error) {
		return deps.DialWebSocket(ctx, url)
	}
}
