package rpc

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// JSONCodec serves the plain Go message structs of this package under the
// "json" codec name, so Connect clients using application/json (and
// application/connect+json for streams) work without generated protobufs.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return b, nil
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

// HandlerOptions are applied to every service handler.
func HandlerOptions(extra ...connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, extra...)
}

// ClientOptions make a Connect client speak to these services.
func ClientOptions(extra ...connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, extra...)
}
