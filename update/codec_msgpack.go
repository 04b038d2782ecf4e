package update

import "github.com/vmihailenco/msgpack/v5"

// MsgpackCodec encodes updates as MessagePack using the same envelope as
// JSONCodec.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(u Update) ([]byte, error) {
	e, err := toEnvelope(u)
	if err != nil {
		return nil, err
	}
	return msgpack.Marshal(&e)
}

func (MsgpackCodec) Decode(data []byte) (Update, error) {
	var e envelope
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return fromEnvelope(e)
}

func (MsgpackCodec) Name() string { return CodecNameMsgpack }
