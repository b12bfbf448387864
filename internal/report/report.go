// Package report holds the per-camera outcome of a capture run.
package report

import (
	"encoding/base64"
	"encoding/json"

	"github.com/mikeyg42/plantwatch/internal/farms"
)

// Threshold is the score a non-healthy label must exceed to count as disease.
const Threshold = 0.8

// HealthyLabel is the classifier's "no disease" label.
const HealthyLabel = "healthy"

// NoCaptureMessage marks a folder that held no image.
const NoCaptureMessage = "no capture found"

// Score is one label returned by the classifier.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// LabelResult is a Score as presented to operators.
type LabelResult struct {
	IsDiseaseDetected bool    `json:"isDiseaseDetected"`
	Label             string  `json:"label"`
	Confidence        float64 `json:"confidence"`
}

// Result is the reconciled outcome for one capture folder.
type Result struct {
	Folder       string        `json:"folder"`
	Message      string        `json:"message,omitempty"`
	Camera       int           `json:"camera,omitempty"`
	Record       *farms.Record `json:"cameraData,omitempty"`
	ImagePath    string        `json:"imagePath,omitempty"`
	Image        []byte        `json:"-"`
	HasDisease   bool          `json:"hasDisease"`
	DiseaseTypes []Score       `json:"diseaseTypes,omitempty"`
	Results      []LabelResult `json:"classification_results,omitempty"`
}

// Assess reports whether any non-healthy label scores strictly above threshold,
// and returns those labels in classifier order.
func Assess(scores []Score, threshold float64) (bool, []Score) {
	var diseases []Score
	for _, s := range scores {
		if s.Label != HealthyLabel && s.Score > threshold {
			diseases = append(diseases, s)
		}
	}
	return len(diseases) > 0, diseases
}

// Classified builds the result for a folder whose image was scored.
func Classified(folder string, record farms.Record, imagePath string, image []byte, scores []Score, threshold float64) Result {
	hasDisease, diseases := Assess(scores, threshold)

	labels := make([]LabelResult, 0, len(scores))
	for _, s := range scores {
		labels = append(labels, LabelResult{
			IsDiseaseDetected: s.Label != HealthyLabel,
			Label:             s.Label,
			Confidence:        s.Score * 100,
		})
	}

	rec := record
	return Result{
		Folder:       folder,
		Camera:       record.Camera,
		Record:       &rec,
		ImagePath:    imagePath,
		Image:        image,
		HasDisease:   hasDisease,
		DiseaseTypes: diseases,
		Results:      labels,
	}
}

// NoCapture builds the result for a folder without an image.
func NoCapture(folder string) Result {
	return Result{Folder: folder, Message: NoCaptureMessage}
}

// AnyDisease reports whether any result in the batch has disease.
func AnyDisease(batch []Result) bool {
	for _, r := range batch {
		if r.HasDisease {
			return true
		}
	}
	return false
}

// DataURL returns the image as a data URL, or "" when there is none.
func (r Result) DataURL() string {
	if len(r.Image) == 0 {
		return ""
	}
	return "data:image/bmp;base64," + base64.StdEncoding.EncodeToString(r.Image)
}

// MarshalJSON inlines the image as a data URL under "image".
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		ImageURL string `json:"image,omitempty"`
	}{
		plain:    plain(r),
		ImageURL: r.DataURL(),
	})
}
