package update

import "encoding/json"

// JSONCodec encodes updates as the producer's tagged JSON objects.
type JSONCodec struct{}

func (JSONCodec) Encode(u Update) ([]byte, error) {
	e, err := toEnvelope(u)
	if err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func (JSONCodec) Decode(data []byte) (Update, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return fromEnvelope(e)
}

func (JSONCodec) Name() string { return CodecNameJSON }
