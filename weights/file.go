package weights

import (
	"bufio"
	"context"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

// Format is a state dict file format.
type Format int

const (
	FormatSafetensors Format = iota
	FormatGob
)

func (f Format) String() string {
	switch f {
	case FormatSafetensors:
		return "safetensors"
	case FormatGob:
		return "gob"
	}
	return "unknown"
}

// FormatOf picks the format from the file extension (path or gs:// url).
func FormatOf(location string) (Format, error) {
	switch ext := strings.ToLower(path.Ext(location)); ext {
	case ".safetensors":
		return FormatSafetensors, nil
	case ".gob":
		return FormatGob, nil
	default:
		return 0, errors.Errorf("unsupported weights extension %q in %q, use .safetensors or .gob", ext, location)
	}
}

// ReadFile reads a state dict from a local path or gs:// url.
func ReadFile(ctx context.Context, location string) (map[string]*tensor.Tensor, error) {
	format, err := FormatOf(location)
	if err != nil {
		return nil, err
	}
	rc, err := Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := bufio.NewReader(rc)
	var sd map[string]*tensor.Tensor
	switch format {
	case FormatGob:
		sd, err = LoadGob(r)
	default:
		sd, err = ReadSafetensors(r)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %s weights from %q", format, location)
	}
	return sd, nil
}

// WriteFile writes sd to a local file, in the format given by its extension. dtype only
// applies to safetensors; gob checkpoints keep full precision.
func WriteFile(filePath string, sd map[string]*tensor.Tensor, dtype DType) (err error) {
	format, err := FormatOf(filePath)
	if err != nil {
		return err
	}
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q to save weights", filePath)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing %q, where weights were saved", filePath)
		}
	}()

	w := bufio.NewWriter(f)
	switch format {
	case FormatGob:
		err = SaveGob(w, sd)
	default:
		err = WriteSafetensors(w, sd, dtype)
	}
	if err != nil {
		return errors.WithMessagef(err, "saving weights to %q", filePath)
	}
	if err = w.Flush(); err != nil {
		return errors.Wrapf(err, "flushing %q", filePath)
	}
	return nil
}
