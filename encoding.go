package graphground

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/vmihailenco/msgpack/v5"
)

// Key encoding helpers for bbolt.
// All integer keys use big-endian encoding for proper byte-ordering in B+tree.

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func encodeNodeID(id NodeID) []byte { return encodeUint64(uint64(id)) }

func decodeNodeID(b []byte) NodeID { return NodeID(decodeUint64(b)) }

func encodeEdgeID(id EdgeID) []byte { return encodeUint64(uint64(id)) }

// encodeAdjKey creates a composite adjacency key: nodeID(8) + edgeID(8).
// Prefix scans on the node ID return every edge touching that node.
func encodeAdjKey(nodeID NodeID, edgeID EdgeID) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], uint64(nodeID))
	binary.BigEndian.PutUint64(buf[8:], uint64(edgeID))
	return buf
}

func decodeAdjKey(b []byte) (NodeID, EdgeID) {
	return NodeID(binary.BigEndian.Uint64(b[:8])), EdgeID(binary.BigEndian.Uint64(b[8:]))
}

// encodeAdjValue encodes an adjacency value: peer nodeID(8) + label bytes.
// The label lets labeled lookups skip decoding edges that cannot match.
func encodeAdjValue(peer NodeID, label string) []byte {
	buf := make([]byte, 8+len(label))
	binary.BigEndian.PutUint64(buf[:8], uint64(peer))
	copy(buf[8:], label)
	return buf
}

func decodeAdjValue(data []byte) (NodeID, string) {
	if len(data) < 8 {
		return 0, ""
	}
	return NodeID(binary.BigEndian.Uint64(data[:8])), string(data[8:])
}

// encodeIndexKey creates an edge-type index key: label + 0x00 + edgeID.
func encodeIndexKey(label string, id uint64) []byte {
	buf := make([]byte, len(label)+1+8)
	copy(buf, label)
	buf[len(label)] = 0x00
	binary.BigEndian.PutUint64(buf[len(label)+1:], id)
	return buf
}

func encodeIndexPrefix(label string) []byte {
	buf := make([]byte, len(label)+1)
	copy(buf, label)
	return buf
}

// propsMagicCRC marks MessagePack props followed by a CRC32 trailer.
const propsMagicCRC byte = 0x02

var crc32Table = crc32.MakeTable(crc32.Castagnoli)

// encodeProps serializes properties to MessagePack with a CRC32 checksum.
// Format: magic(1) + msgpack_data + crc32(4)
func encodeProps(props Props) ([]byte, error) {
	if props == nil {
		props = make(Props)
	}
	raw, err := msgpack.Marshal(props)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 1+len(raw)+4)
	buf[0] = propsMagicCRC
	copy(buf[1:], raw)
	checksum := crc32.Checksum(buf[:1+len(raw)], crc32Table)
	binary.BigEndian.PutUint32(buf[1+len(raw):], checksum)
	return buf, nil
}

// decodeProps verifies the checksum and deserializes properties.
func decodeProps(data []byte) (Props, error) {
	if len(data) < 5 || data[0] != propsMagicCRC {
		return nil, fmt.Errorf("graphground: unrecognized props encoding (%d bytes)", len(data))
	}
	payload := data[:len(data)-4]
	stored := binary.BigEndian.Uint32(data[len(data)-4:])
	if actual := crc32.Checksum(payload, crc32Table); stored != actual {
		return nil, fmt.Errorf("graphground: props checksum mismatch (stored=%08x actual=%08x)", stored, actual)
	}
	// Loose decoding yields int64/uint64/float64 for every number, so
	// predicates and callers never see int8 or uint16 values.
	dec := msgpack.NewDecoder(bytes.NewReader(payload[1:]))
	dec.UseLooseInterfaceDecoding(true)
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = make(map[string]interface{})
	}
	return Props(m), nil
}

// encodeEdge serializes an edge: ID(8) + From(8) + To(8) + labelLen(4) + label + props.
// The props section carries its own checksum.
func encodeEdge(e *Edge) ([]byte, error) {
	propsData, err := encodeProps(e.Props)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 28+len(e.Label)+len(propsData))
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.ID))
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.From))
	binary.BigEndian.PutUint64(buf[16:24], uint64(e.To))
	binary.BigEndian.PutUint32(buf[24:28], uint32(len(e.Label)))
	copy(buf[28:], e.Label)
	copy(buf[28+len(e.Label):], propsData)
	return buf, nil
}

func decodeEdge(data []byte) (*Edge, error) {
	if len(data) < 28 {
		return nil, fmt.Errorf("graphground: edge data too short (%d bytes)", len(data))
	}
	e := &Edge{
		ID:   EdgeID(binary.BigEndian.Uint64(data[0:8])),
		From: NodeID(binary.BigEndian.Uint64(data[8:16])),
		To:   NodeID(binary.BigEndian.Uint64(data[16:24])),
	}
	labelLen := int(binary.BigEndian.Uint32(data[24:28]))
	if 28+labelLen > len(data) {
		return nil, fmt.Errorf("graphground: edge %d data corrupted", e.ID)
	}
	e.Label = string(data[28 : 28+labelLen])
	if rest := data[28+labelLen:]; len(rest) > 0 {
		props, err := decodeProps(rest)
		if err != nil {
			return nil, err
		}
		e.Props = props
	}
	return e, nil
}
