package update

import (
	"errors"
	"fmt"

	"github.com/xraph/researchsync/job"
)

var (
	// ErrUnknownUpdate is returned when the type tag names no variant.
	ErrUnknownUpdate = errors.New("update: unknown update type")
	// ErrMalformedUpdate is returned when a required field is missing.
	ErrMalformedUpdate = errors.New("update: malformed update")
)

// Codec defines the serialization contract for updates.
type Codec interface {
	// Encode serializes an update to bytes.
	Encode(u Update) ([]byte, error)

	// Decode deserializes bytes into an update.
	Decode(data []byte) (Update, error)

	// Name returns the codec identifier ("json" or "msgpack").
	Name() string
}

// Codec names for format negotiation.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Defaults to JSON.
func GetCodec(name string) Codec {
	switch name {
	case CodecNameMsgpack:
		return MsgpackCodec{}
	default:
		return JSONCodec{}
	}
}

// envelope is the flat tagged wire shape shared by both codecs.
type envelope struct {
	Type         Kind          `json:"type" msgpack:"type"`
	JobID        string        `json:"job_id" msgpack:"job_id"`
	Status       string        `json:"status,omitempty" msgpack:"status,omitempty"`
	Progress     *job.Progress `json:"progress,omitempty" msgpack:"progress,omitempty"`
	Report       *job.Report   `json:"report,omitempty" msgpack:"report,omitempty"`
	Error        string        `json:"error,omitempty" msgpack:"error,omitempty"`
	ContentChunk string        `json:"content_chunk,omitempty" msgpack:"content_chunk,omitempty"`
}

func toEnvelope(u Update) (envelope, error) {
	e := envelope{Type: u.Kind(), JobID: u.TargetJob()}
	switch v := u.(type) {
	case StatusChanged:
		e.Status = string(v.Status)
		if v.Phase != "" {
			e.Status = v.Phase
		}
	case ProgressUpdate:
		p := v.Progress
		e.Progress = &p
	case Completed:
		r := v.Report
		e.Report = &r
	case Failed:
		e.Error = v.Error
	case FollowUpStarted:
	case DocumentEditing:
		e.ContentChunk = v.ContentChunk
	case FollowUpCompleted:
		r := v.Report
		e.Report = &r
	default:
		return envelope{}, fmt.Errorf("%w: %T", ErrUnknownUpdate, u)
	}
	return e, nil
}

func fromEnvelope(e envelope) (Update, error) {
	if e.JobID == "" {
		return nil, fmt.Errorf("%w: %s without job_id", ErrMalformedUpdate, e.Type)
	}
	switch e.Type {
	case KindStatusChanged:
		st, phase, err := job.ParseStatus(e.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
		}
		return StatusChanged{JobID: e.JobID, Status: st, Phase: phase}, nil
	case KindProgressUpdate:
		if e.Progress == nil {
			return nil, fmt.Errorf("%w: progress_update without progress", ErrMalformedUpdate)
		}
		return ProgressUpdate{JobID: e.JobID, Progress: *e.Progress}, nil
	case KindCompleted:
		if e.Report == nil {
			return nil, fmt.Errorf("%w: completed without report", ErrMalformedUpdate)
		}
		return Completed{JobID: e.JobID, Report: *e.Report}, nil
	case KindFailed:
		return Failed{JobID: e.JobID, Error: e.Error}, nil
	case KindFollowUpStarted:
		return FollowUpStarted{JobID: e.JobID}, nil
	case KindDocumentEditing:
		return DocumentEditing{JobID: e.JobID, ContentChunk: e.ContentChunk}, nil
	case KindFollowUpCompleted:
		if e.Report == nil {
			return nil, fmt.Errorf("%w: followup_completed without report", ErrMalformedUpdate)
		}
		return FollowUpCompleted{JobID: e.JobID, Report: *e.Report}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUpdate, e.Type)
	}
}
