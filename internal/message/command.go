package message

import (
	"github.com/kaelstream/rtmp-hub/internal/amf0"
	"github.com/kaelstream/rtmp-hub/internal/chunk"
	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
)

// Command is a decoded AMF0 command/invoke message: a command name, a
// transaction ID, an optional command object, and zero or more trailing
// arguments — the wire shape every connect/createStream/publish/play/
// onStatus exchange uses (spec.md §4.5).
type Command struct {
	Name          string
	TransactionID float64
	CommandObject *amf0.Value
	Arguments     []*amf0.Value
}

// Arg returns the i-th trailing argument, or an Undefined value if out
// of range, mirroring the teacher's RTMPCommand.GetArg tolerance for
// missing optional arguments.
func (c *Command) Arg(i int) *amf0.Value {
	if i < 0 || i >= len(c.Arguments) {
		return amf0.Undefined()
	}
	return c.Arguments[i]
}

// DecodeCommand parses an AMF0-encoded command message payload.
func DecodeCommand(payload []byte) (*Command, error) {
	values, err := amf0.DecodeAll(payload)
	if err != nil {
		return nil, rtmperrors.Wrap(rtmperrors.KindParse, "message.DecodeCommand", err)
	}
	if len(values) < 2 {
		return nil, rtmperrors.New(rtmperrors.KindParse, "message.DecodeCommand: need at least name and transaction id")
	}
	cmd := &Command{
		Name:          values[0].GetString(),
		TransactionID: values[1].GetNumber(),
	}
	if len(values) >= 3 {
		cmd.CommandObject = values[2]
		cmd.Arguments = values[3:]
	}
	return cmd, nil
}

// EncodeCommand serializes a Command back into an AMF0 payload.
func EncodeCommand(cmd *Command) ([]byte, error) {
	values := []*amf0.Value{amf0.String(cmd.Name), amf0.Number(cmd.TransactionID)}
	if cmd.CommandObject != nil {
		values = append(values, cmd.CommandObject)
	}
	values = append(values, cmd.Arguments...)
	return amf0.EncodeAll(values)
}

// EncodeDataTag serializes an AMF0 data-message body: a leading tag
// string (e.g. "onMetaData", "|RtmpSampleAccess") followed by its
// values, mirroring the teacher's RTMPData.Encode used by
// SendMetadata/SendSampleAccess.
func EncodeDataTag(tag string, values ...*amf0.Value) ([]byte, error) {
	all := append([]*amf0.Value{amf0.String(tag)}, values...)
	return amf0.EncodeAll(all)
}

// StatusMessage builds the onStatus("level","code","description")
// command every NetStream reply uses, mirroring the teacher's
// SendStatusMessage.
func StatusMessage(streamID uint32, level, code, description string) (*chunk.Message, error) {
	info := amf0.NewOrderedMap()
	info.Set("level", amf0.String(level))
	info.Set("code", amf0.String(code))
	if description != "" {
		info.Set("description", amf0.String(description))
	}

	cmd := &Command{
		Name:          "onStatus",
		TransactionID: 0,
		CommandObject: amf0.Null(),
		Arguments:     []*amf0.Value{amf0.Object(info)},
	}
	payload, err := EncodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	return CommandMessage(streamID, payload), nil
}
