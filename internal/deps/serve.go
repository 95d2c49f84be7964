package deps

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/coder/websocket"

	"github.com/conneroisu/isle/internal/channel"
	"github.com/conneroisu/isle/internal/logging"
)

// maxMessageSize bounds one websocket frame. Closures of large trees exceed
// the library default.
const maxMessageSize = 16 << 20

// Serve answers analysis requests on ep until the peer closes it.
func Serve(ctx context.Context, ep Conn, analyzer *Analyzer, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("analyzer")

	for {
		req, err := ep.Receive(ctx)
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		resp := Message{ID: req.ID}
		switch req.Method {
		case MethodGetDependencies:
			records, err := analyzer.Analyze(ctx, req.Files)
			if err != nil {
				logger.Error(ctx, err, "analysis failed", "id", req.ID)
				resp.Error = err.Error()
			} else {
				resp.Records = records
				logger.Debug(ctx, "analysis done", "id", req.ID, "seeds", len(req.Files), "records", len(records))
			}
		default:
			resp.Error = "unknown method " + req.Method
		}

		if err := ep.Send(ctx, resp); err != nil {
			return err
		}
	}
}

// InProcess serves analysis requests on a goroutine and returns the
// coordinator's end. Closing that end stops the server.
func InProcess(ctx context.Context, analyzer *Analyzer, logger logging.Logger) Conn {
	coordinator, worker := channel.Pair[Message](1)
	go func() {
		defer worker.Close()
		_ = Serve(ctx, worker, analyzer, logger)
	}()
	return coordinator
}

// Handler accepts websocket connections and serves analysis requests on
// each of them.
func Handler(analyzer *Analyzer, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			logger.Warn(r.Context(), err, "websocket accept failed")
			return
		}
		conn.SetReadLimit(maxMessageSize)

		ep := channel.NewWebSocket[Message](conn)
		defer ep.Close()
		if err := Serve(r.Context(), ep, analyzer, logger); err != nil {
			logger.Warn(r.Context(), err, "analysis connection ended")
		}
	})
}

// DialWebSocket connects to an analysis worker served by Handler.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return channel.NewWebSocket[Message](conn), nil
}
