package deps

import (
	"github.com/conneroisu/isle/internal/channel"
)

// MethodGetDependencies asks the analysis worker for an import closure.
const MethodGetDependencies = "getDependencies"

// Message is the single frame type exchanged with an analysis worker.
// Requests carry Method and Files; responses carry Records or Error. ID pairs
// a response with its request.
type Message struct {
	Method  string             `json:"method,omitempty"`
	ID      uint64             `json:"id"`
	Files   []string           `json:"files,omitempty"`
	Records []DependencyRecord `json:"records,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Conn is the coordinator's end of a link to an analysis worker.
type Conn = channel.Endpoint[Message]
