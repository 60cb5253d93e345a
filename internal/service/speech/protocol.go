package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// Volcengine speech endpoints speak a 4-byte-header binary framing over
// WebSocket. Only the message shapes the TTS client exchanges are modeled:
// a full client request out, and full/audio-only/error responses in.

const protocolVersion = 0b0001

type messageType uint8

const (
	fullClientRequest       messageType = 0b0001
	fullServerResponse      messageType = 0b1001
	audioOnlyServerResponse messageType = 0b1011
	errorResponse           messageType = 0b1111
)

type messageFlags uint8

const (
	noSequence           messageFlags = 0b0000
	positiveSequence     messageFlags = 0b0001
	lastPacketNoSequence messageFlags = 0b0010
	negativeSequence     messageFlags = 0b0011
	withEvent            messageFlags = 0b0100
)

type serializationMethod uint8

const (
	noSerialization   serializationMethod = 0b0000
	jsonSerialization serializationMethod = 0b0001
)

type compressionMethod uint8

const (
	noCompression   compressionMethod = 0b0000
	gzipCompression compressionMethod = 0b0001
)

const sessionFinishedEvent = 152

// frame is one decoded protocol message.
type frame struct {
	Type        messageType
	Flags       messageFlags
	Compression compressionMethod
	Sequence    int32
	Event       int32
	SessionID   string
	ErrorCode   uint32
	Payload     []byte
}

// last reports whether the frame closes the response stream.
func (f *frame) last() bool {
	if f.Flags&withEvent == withEvent && f.Event == sessionFinishedEvent {
		return true
	}
	switch f.Flags & 0b0011 {
	case lastPacketNoSequence, negativeSequence:
		return true
	}
	return false
}

// decodedPayload returns the payload with frame-level compression undone.
func (f *frame) decodedPayload() ([]byte, error) {
	if f.Compression != gzipCompression {
		return f.Payload, nil
	}
	reader, err := gzip.NewReader(bytes.NewReader(f.Payload))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return data, nil
}

// encodeClientRequest frames a JSON request payload for the server.
func encodeClientRequest(payload []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(payload)+8))
	buf.WriteByte(protocolVersion<<4 | 0b0001) // version + 4-byte header
	buf.WriteByte(uint8(fullClientRequest)<<4 | uint8(noSequence))
	buf.WriteByte(uint8(jsonSerialization)<<4 | uint8(noCompression))
	buf.WriteByte(0x00) // reserved

	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(payload)))
	buf.Write(size)
	buf.Write(payload)
	return buf.Bytes()
}

// decodeFrame parses one server message.
func decodeFrame(data []byte) (*frame, error) {
	reader := bytes.NewReader(data)

	header := make([]byte, 4)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if version := header[0] >> 4; version != protocolVersion {
		return nil, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := &frame{
		Type:        messageType(header[1] >> 4),
		Flags:       messageFlags(header[1] & 0x0F),
		Compression: compressionMethod(header[2] & 0x0F),
	}

	// Extended headers are padding beyond the base 4 bytes.
	if extra := int(header[0]&0x0F)*4 - 4; extra > 0 {
		if _, err := reader.Seek(int64(extra), io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("skip extended header: %w", err)
		}
	}

	switch f.Flags & 0b0011 {
	case positiveSequence, negativeSequence:
		if err := binary.Read(reader, binary.BigEndian, &f.Sequence); err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
	}

	if f.Flags&withEvent == withEvent {
		if err := binary.Read(reader, binary.BigEndian, &f.Event); err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		if eventCarriesSessionID(f.Event) {
			var size uint32
			if err := binary.Read(reader, binary.BigEndian, &size); err != nil {
				return nil, fmt.Errorf("read session id size: %w", err)
			}
			if size > 0 {
				session := make([]byte, size)
				if _, err := io.ReadFull(reader, session); err != nil {
					return nil, fmt.Errorf("read session id: %w", err)
				}
				f.SessionID = string(session)
			}
		}
	}

	if f.Type == errorResponse {
		if err := binary.Read(reader, binary.BigEndian, &f.ErrorCode); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	var payloadSize uint32
	if err := binary.Read(reader, binary.BigEndian, &payloadSize); err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	if payloadSize > 0 {
		f.Payload = make([]byte, payloadSize)
		if _, err := io.ReadFull(reader, f.Payload); err != nil {
			return nil, fmt.Errorf("read payload (%d bytes): %w", payloadSize, err)
		}
	}

	return f, nil
}

// Connection-scoped events omit the session id field.
func eventCarriesSessionID(event int32) bool {
	switch event {
	case 1, 2, 50, 51, 52:
		return false
	default:
		return true
	}
}
