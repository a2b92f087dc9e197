package utility

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"go-soundimage/nn"
	"go-soundimage/tensor"
)

// bytes per element of the in-memory float64 tensors.
const elementSize = 8

// provides utility functions to analyze and log details of a model.
type ModelInspector struct {
	model nn.Layer
}

// creates a new inspector for the given model.
func NewModelInspector(model nn.Layer) *ModelInspector {
	return &ModelInspector{model: model}
}

// Entry describes one state dict tensor. buffers (batchnorm running statistics) are not
// learnable parameters.
type Entry struct {
	Name   string
	Shape  []int
	Numel  int
	Buffer bool
}

// Entries lists the model state dict sorted by name.
func (mi *ModelInspector) Entries() []Entry {
	params := make(map[*tensor.Tensor]bool)
	for _, p := range mi.model.Parameters() {
		params[p] = true
	}
	sd := mi.model.StateDict()
	entries := make([]Entry, 0, len(sd))
	for name, t := range sd {
		entries = append(entries, Entry{
			Name:   name,
			Shape:  t.GetShape(),
			Numel:  tensor.Numel(t),
			Buffer: !params[t],
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// parameter counts for the model: learnable parameters and buffer elements.
func (mi *ModelInspector) CountParameters() (parameters int64, buffers int64) {
	for _, e := range mi.Entries() {
		if e.Buffer {
			buffers += int64(e.Numel)
		} else {
			parameters += int64(e.Numel)
		}
	}
	return parameters, buffers
}

// MemoryBytes is the size of all parameters and buffers held in memory.
func (mi *ModelInspector) MemoryBytes() uint64 {
	parameters, buffers := mi.CountParameters()
	return uint64(parameters+buffers) * elementSize
}

// prints summary of the model
func (mi *ModelInspector) Summary(w io.Writer) {
	fmt.Fprintf(w, "%s\n", mi.model.Name())

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"NAME", "KIND", "SHAPE", "PARAM #"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	for _, e := range mi.Entries() {
		kind := "param"
		if e.Buffer {
			kind = "buffer"
		}
		table.Append([]string{e.Name, kind, fmt.Sprint(e.Shape), humanize.Comma(int64(e.Numel))})
	}
	table.Render()

	parameters, buffers := mi.CountParameters()
	fmt.Fprintf(w, "Trainable parameters: %s\n", humanize.Comma(parameters))
	fmt.Fprintf(w, "Buffer elements: %s\n", humanize.Comma(buffers))
	fmt.Fprintf(w, "Memory (float64): %s\n", humanize.Bytes(mi.MemoryBytes()))
}
