package weights

import (
	"encoding/gob"
	"io"
	"sort"

	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

// Record is one named tensor of a gob checkpoint.
type Record struct {
	Name  string
	Shape []int
	Data  []float64
}

// SaveGob writes sd as a list of Records sorted by name.
func SaveGob(w io.Writer, sd map[string]*tensor.Tensor) error {
	records := make([]Record, 0, len(sd))
	for name, t := range sd {
		records = append(records, Record{Name: name, Shape: t.GetShape(), Data: t.GetData()})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	if err := gob.NewEncoder(w).Encode(records); err != nil {
		return errors.Wrap(err, "failed to write gob checkpoint")
	}
	return nil
}

// LoadGob reads a checkpoint written by SaveGob.
func LoadGob(r io.Reader) (map[string]*tensor.Tensor, error) {
	var records []Record
	if err := gob.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "failed to read gob checkpoint")
	}
	sd := make(map[string]*tensor.Tensor, len(records))
	for _, rec := range records {
		if _, found := sd[rec.Name]; found {
			return nil, errors.Errorf("duplicate tensor %q in gob checkpoint", rec.Name)
		}
		t, err := tensor.NewTensor(rec.Shape, rec.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "tensor %q", rec.Name)
		}
		sd[rec.Name] = t
	}
	return sd, nil
}
