package weights

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/d4l3k/go-bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"

	"go-soundimage/tensor"
)

// DType is a safetensors element type.
type DType string

const (
	F32  DType = "F32"
	F64  DType = "F64"
	F16  DType = "F16"
	BF16 DType = "BF16"
	I64  DType = "I64"
)

const (
	metadataKey = "__metadata__"
	// headers larger than this are rejected before allocating.
	maxHeaderSize = 100 << 20
	// BatchNorm's batch counter is an integer buffer in torch.
	counterSuffix = ".num_batches_tracked"
)

// Size returns the number of bytes of one element, or 0 for unknown types.
func (d DType) Size() int {
	switch d {
	case F64, I64:
		return 8
	case F32:
		return 4
	case F16, BF16:
		return 2
	}
	return 0
}

// ParseDType accepts a dtype name in any case ("f16", "F32", ...).
func ParseDType(name string) (DType, error) {
	d := DType(strings.ToUpper(name))
	if d.Size() == 0 {
		return "", errors.Errorf("unknown dtype %q", name)
	}
	return d, nil
}

type safetensorHeader struct {
	Type    string   `json:"dtype"`
	Shape   []int    `json:"shape"`
	Offsets [2]int64 `json:"data_offsets"`
}

// ReadSafetensors decodes a safetensors stream into a state dict. every supported dtype is
// widened to float64.
func ReadSafetensors(r io.Reader) (map[string]*tensor.Tensor, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, errors.Wrap(err, "reading safetensors header length")
	}
	if n == 0 || n > maxHeaderSize {
		return nil, errors.Errorf("invalid safetensors header length %d", n)
	}

	b := bytes.NewBuffer(make([]byte, 0, n))
	if _, err := io.CopyN(b, r, int64(n)); err != nil {
		return nil, errors.Wrap(err, "reading safetensors header")
	}
	var headers map[string]safetensorHeader
	if err := json.NewDecoder(b).Decode(&headers); err != nil {
		return nil, errors.Wrap(err, "decoding safetensors header")
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading safetensors data")
	}

	sd := make(map[string]*tensor.Tensor, len(headers))
	for name, h := range headers {
		if name == metadataKey {
			continue
		}
		t, err := decodeSafetensor(h, payload)
		if err != nil {
			return nil, errors.Wrapf(err, "tensor %q", name)
		}
		sd[name] = t
	}
	return sd, nil
}

func decodeSafetensor(h safetensorHeader, payload []byte) (*tensor.Tensor, error) {
	dtype := DType(h.Type)
	size := dtype.Size()
	if size == 0 {
		return nil, errors.Errorf("unknown data type %q", h.Type)
	}
	begin, end := h.Offsets[0], h.Offsets[1]
	if begin < 0 || end < begin || end > int64(len(payload)) {
		return nil, errors.Errorf("data offsets [%d, %d) outside of %d data bytes", begin, end, len(payload))
	}

	count, err := tensor.ShapeSize(h.Shape)
	if err != nil {
		return nil, err
	}
	raw := payload[begin:end]
	if len(raw)%size != 0 || len(raw)/size != count {
		return nil, errors.Errorf("shape %v of %s needs %d elements, got %d bytes", h.Shape, dtype, count, len(raw))
	}

	data := make([]float64, count)
	switch dtype {
	case F64:
		for i := range data {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case F32:
		for i := range data {
			data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	case F16:
		for i := range data {
			data[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32())
		}
	case BF16:
		for i, v := range bfloat16.DecodeFloat32(raw) {
			data[i] = float64(v)
		}
	case I64:
		for i := range data {
			data[i] = float64(int64(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	}
	return tensor.NewTensor(h.Shape, data)
}

// WriteSafetensors encodes sd with floating point tensors stored as dtype (F32, F64 or
// F16). batch counters are stored as I64 whatever dtype is.
func WriteSafetensors(w io.Writer, sd map[string]*tensor.Tensor, dtype DType) error {
	switch dtype {
	case F32, F64, F16:
	default:
		return errors.Errorf("cannot write safetensors as %s", dtype)
	}

	names := make([]string, 0, len(sd))
	for name := range sd {
		names = append(names, name)
	}
	sort.Strings(names)

	headers := map[string]any{
		metadataKey: map[string]string{"format": "pt"},
	}
	var payload bytes.Buffer
	for _, name := range names {
		t := sd[name]
		d := dtype
		if strings.HasSuffix(name, counterSuffix) {
			d = I64
		}
		begin := int64(payload.Len())
		encodeSafetensor(&payload, t.GetData(), d)
		headers[name] = safetensorHeader{
			Type:    string(d),
			Shape:   append([]int{}, t.GetShape()...),
			Offsets: [2]int64{begin, int64(payload.Len())},
		}
	}

	header, err := json.Marshal(headers)
	if err != nil {
		return errors.Wrap(err, "encoding safetensors header")
	}
	// pad so the data section starts 8-byte aligned
	if rem := len(header) % 8; rem != 0 {
		header = append(header, bytes.Repeat([]byte(" "), 8-rem)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(header))); err != nil {
		return errors.Wrap(err, "writing safetensors header length")
	}
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "writing safetensors header")
	}
	if _, err := payload.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing safetensors data")
	}
	return nil
}

func encodeSafetensor(buf *bytes.Buffer, data []float64, dtype DType) {
	var scratch [8]byte
	for _, v := range data {
		switch dtype {
		case F64:
			binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
		case F32:
			binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(float32(v)))
		case F16:
			binary.LittleEndian.PutUint16(scratch[:], float16.Fromfloat32(float32(v)).Bits())
		case I64:
			binary.LittleEndian.PutUint64(scratch[:], uint64(int64(v)))
		}
		buf.Write(scratch[:dtype.Size()])
	}
}
