// Package farms maps camera numbers to the farm and plant they watch.
package farms

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Cameras is the number of camera records a table must hold.
const Cameras = 16

// Record describes what one camera is pointed at.
type Record struct {
	Camera    int    `json:"camera" yaml:"camera"`
	Farmer    string `json:"farmer" yaml:"farmer"`
	PlantName string `json:"chilliName" yaml:"plant_name"`
	PlantCode string `json:"chilliCode" yaml:"plant_code"`
	BedNumber *int   `json:"bedNumber" yaml:"bed_number"`
}

// Table is an immutable camera-number index of records.
type Table struct {
	byCamera map[int]Record
}

var ErrInvalidTable = errors.New("invalid camera table")

func bed(n int) *int { return &n }

var defaultRecords = []Record{
	{Camera: 1, Farmer: "S.S.ROY", PlantName: "RED HOT", PlantCode: "+0728"},
	{Camera: 2, Farmer: "S.S.ROY", PlantName: "KING HOT", PlantCode: "1102", BedNumber: bed(2)},
	{Camera: 3, Farmer: "Goutam Das", PlantName: "DHOOM", PlantCode: "2"},
	{Camera: 4, Farmer: "Goutam Das", PlantName: "DHOOM", PlantCode: "1"},
	{Camera: 5, Farmer: "S.S.ROY", PlantName: "PAVANI", PlantCode: "1302", BedNumber: bed(1)},
	{Camera: 6, Farmer: "S.S.ROY", PlantName: "PAVANI", PlantCode: "1302", BedNumber: bed(2)},
	{Camera: 7, Farmer: "S.S.ROY", PlantName: "KING HOT", PlantCode: "1102", BedNumber: bed(1)},
	{Camera: 8, Farmer: "S.S.ROY", PlantName: "RED HOT", PlantCode: "+0728", BedNumber: bed(2)},
	{Camera: 9, Farmer: "S.S.ROY", PlantName: "RED HOT", PlantCode: "2090", BedNumber: bed(1)},
	{Camera: 10, Farmer: "S.S.ROY", PlantName: "KING HOT", PlantCode: "1102", BedNumber: bed(2)},
	{Camera: 11, Farmer: "Goutam Das", PlantName: "NS2565", PlantCode: "2"},
	{Camera: 12, Farmer: "Goutam Das", PlantName: "NS2565", PlantCode: "1"},
	{Camera: 13, Farmer: "Goutam Das", PlantName: "NS2549", PlantCode: "2"},
	{Camera: 14, Farmer: "Goutam Das", PlantName: "NS2549", PlantCode: "1"},
	{Camera: 15, Farmer: "Goutam Das", PlantName: "TEJITA", PlantCode: "2"},
	{Camera: 16, Farmer: "Goutam Das", PlantName: "TEJITA", PlantCode: "1"},
}

// Default returns the built-in table.
func Default() *Table {
	t, err := New(defaultRecords)
	if err != nil {
		panic(err)
	}
	return t
}

// New builds a table, requiring exactly one record for each camera 1..16.
func New(records []Record) (*Table, error) {
	if len(records) != Cameras {
		return nil, fmt.Errorf("%w: %d records, want %d", ErrInvalidTable, len(records), Cameras)
	}
	t := &Table{byCamera: make(map[int]Record, len(records))}
	for _, r := range records {
		if r.Camera < 1 || r.Camera > Cameras {
			return nil, fmt.Errorf("%w: camera %d out of range 1..%d", ErrInvalidTable, r.Camera, Cameras)
		}
		if _, dup := t.byCamera[r.Camera]; dup {
			return nil, fmt.Errorf("%w: camera %d listed twice", ErrInvalidTable, r.Camera)
		}
		t.byCamera[r.Camera] = r
	}
	return t, nil
}

type fileFormat struct {
	Cameras []Record `yaml:"cameras"`
}

// LoadFile reads a YAML table of the form `cameras: [{camera: 1, farmer: ...}, ...]`.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera table: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse camera table %s: %w", path, err)
	}
	return New(f.Cameras)
}

// Lookup returns the record for a 1-based camera number.
func (t *Table) Lookup(camera int) (Record, bool) {
	r, ok := t.byCamera[camera]
	return r, ok
}

// Records returns every record in camera order.
func (t *Table) Records() []Record {
	out := make([]Record, 0, len(t.byCamera))
	for _, r := range t.byCamera {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Camera < out[j].Camera })
	return out
}
