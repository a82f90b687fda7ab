package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/c360/enginelink/errors"
)

// Wire type tags for requests.
const (
	wireTypeHeaders = "headers"
	wireTypeCommand = "command"
	wireTypeBatch   = "batch"
)

type wireHeaders struct {
	AuthToken string `json:"auth_token"`
}

type wireSubCommand struct {
	ID      string          `json:"id"`
	Command json.RawMessage `json:"command"`
}

type wireRequest struct {
	Type     string           `json:"type"`
	ID       string           `json:"id,omitempty"`
	Command  json.RawMessage  `json:"command,omitempty"`
	Commands []wireSubCommand `json:"commands,omitempty"`
	Headers  *wireHeaders     `json:"headers,omitempty"`
}

// EncodeRequest converts a request to its text wire framing. Requests are
// always sent as JSON text; only responses use the binary document framing.
func EncodeRequest(req Request) (string, error) {
	var wire wireRequest

	switch r := req.(type) {
	case HeadersRequest:
		wire = wireRequest{
			Type:    wireTypeHeaders,
			Headers: &wireHeaders{AuthToken: r.AuthToken},
		}
	case CommandRequest:
		if r.ID == "" {
			return "", errors.WrapTransport(
				fmt.Errorf("command request without id"),
				"Codec", "EncodeRequest", "validate request")
		}
		wire = wireRequest{Type: wireTypeCommand, ID: r.ID, Command: r.Command}
	case BatchRequest:
		if r.ID == "" {
			return "", errors.WrapTransport(
				fmt.Errorf("batch request without id"),
				"Codec", "EncodeRequest", "validate request")
		}
		subs := make([]wireSubCommand, 0, len(r.Commands))
		for _, sub := range r.Commands {
			subs = append(subs, wireSubCommand{ID: sub.ID, Command: sub.Command})
		}
		wire = wireRequest{Type: wireTypeBatch, ID: r.ID, Commands: subs}
	default:
		return "", errors.WrapTransport(
			fmt.Errorf("unknown request variant %T", req),
			"Codec", "EncodeRequest", "select framing")
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return "", errors.WrapTransport(err, "Codec", "EncodeRequest", "marshal request")
	}
	return string(data), nil
}

// DecodeResponse converts a binary document frame into a Response. The
// correlation id may arrive as a string or as raw binary; binary ids are
// canonicalized to lowercase hex before any table lookup happens.
func DecodeResponse(data []byte) (*Response, error) {
	raw := bson.Raw(data)
	if err := raw.Validate(); err != nil {
		return nil, errors.WrapTransport(err, "Codec", "DecodeResponse", "validate document")
	}

	id, err := canonicalID(raw.Lookup("id"))
	if err != nil {
		return nil, errors.WrapTransport(err, "Codec", "DecodeResponse", "canonicalize id")
	}

	success, _ := raw.Lookup("success").BooleanOK()
	resp := &Response{ID: id, Success: success, Raw: raw}

	if !success {
		resp.Faults = decodeFaults(raw.Lookup("errors"))
		return resp, nil
	}

	kindTag, _ := raw.Lookup("type").StringValueOK()
	payloadDoc, _ := raw.Lookup("data").DocumentOK()

	payload, err := decodePayload(kindTag, payloadDoc)
	if err != nil {
		// The id decoded fine, so keep it on the error: the caller can still
		// settle the pending command this response was meant for.
		return nil, errors.WithCommandID(err, id)
	}
	resp.Payload = payload
	return resp, nil
}

// canonicalID converts the id field to its canonical string form.
func canonicalID(val bson.RawValue) (string, error) {
	switch val.Type {
	case bson.TypeString:
		return val.StringValue(), nil
	case bson.TypeBinary:
		_, b := val.Binary()
		return hex.EncodeToString(b), nil
	case 0:
		// Absent: legal for unsolicited messages such as session data.
		return "", nil
	default:
		return "", fmt.Errorf("id has unsupported type %s", val.Type)
	}
}

// decodeFaults pulls the ordered (code, message) list off a failure
// response. Entries that are not documents are skipped.
func decodeFaults(val bson.RawValue) []errors.Fault {
	arr, ok := val.ArrayOK()
	if !ok {
		return nil
	}
	vals, err := arr.Values()
	if err != nil {
		return nil
	}

	faults := make([]errors.Fault, 0, len(vals))
	for _, v := range vals {
		doc, ok := v.DocumentOK()
		if !ok {
			continue
		}
		code, _ := doc.Lookup("code").StringValueOK()
		message, _ := doc.Lookup("message").StringValueOK()
		faults = append(faults, errors.Fault{Code: code, Message: message})
	}
	return faults
}

// decodePayload builds the typed payload for a success response.
func decodePayload(kindTag string, doc bson.Raw) (Payload, error) {
	switch kindTag {
	case "modeling":
		return ModelingPayload{Data: doc}, nil
	case "export":
		return ExportPayload{Data: doc}, nil
	case "modeling-batch":
		return decodeBatchPayload(doc)
	case "session-data":
		sessionID, _ := doc.Lookup("session_id").StringValueOK()
		return SessionDataPayload{SessionID: sessionID, Data: doc}, nil
	default:
		return nil, errors.WrapTransport(
			fmt.Errorf("%w: %q", errors.ErrUnexpectedPayload, kindTag),
			"Codec", "DecodeResponse", "select payload kind")
	}
}

// decodeBatchPayload walks the per-sub-command entries in document order.
// An entry whose value carries no response document is kept with a nil
// Response so the demultiplexer can skip it explicitly.
func decodeBatchPayload(doc bson.Raw) (Payload, error) {
	responses, ok := doc.Lookup("responses").DocumentOK()
	if !ok {
		return BatchPayload{}, nil
	}

	elems, err := responses.Elements()
	if err != nil {
		return nil, errors.WrapTransport(err, "Codec", "DecodeResponse", "walk batch entries")
	}

	entries := make([]BatchEntry, 0, len(elems))
	for _, elem := range elems {
		entry := BatchEntry{ID: elem.Key()}
		if wrapper, ok := elem.Value().DocumentOK(); ok {
			if respDoc, ok := wrapper.Lookup("response").DocumentOK(); ok {
				entry.Response = &Response{
					ID:      elem.Key(),
					Success: true,
					Payload: ModelingPayload{Data: respDoc},
				}
			}
		}
		entries = append(entries, entry)
	}
	return BatchPayload{Entries: entries}, nil
}
