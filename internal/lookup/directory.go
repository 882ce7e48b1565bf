// Package lookup holds the four domain lookup services that feed the
// referral orchestrator: specialist directory, appointment
// availability, cost estimation, and medical record retrieval. Each
// service logs an agent task around its primary operation: the task is
// opened running, completed with the typed result, or failed with the
// error message before the error is returned to the caller.
package lookup

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/careline/careline/internal/refdata"
	"github.com/careline/careline/internal/referral"
	"github.com/careline/careline/internal/task"
	"go.uber.org/zap"
)

// DirectoryInput identifies the referral and the search parameters.
type DirectoryInput struct {
	ReferralID string `json:"referral_id"`
	Specialty  string `json:"specialty"`
	PatientID  string `json:"patient_id"`
	ZipCode    string `json:"zip_code,omitempty"`
}

// DirectoryOutput is the matched provider shortlist.
type DirectoryOutput struct {
	Providers []referral.Provider `json:"providers"`
}

// maxDirectoryResults caps the shortlist presented on a decision card.
const maxDirectoryResults = 5

// Directory matches referrals to specialists from the provider
// reference table.
type Directory struct {
	providers []referral.Provider
	ledger    task.Ledger
	logger    *zap.Logger
}

// NewDirectory creates a directory service over an immutable provider table.
func NewDirectory(data *refdata.Set, ledger task.Ledger, logger *zap.Logger) *Directory {
	return &Directory{providers: data.Providers, ledger: ledger, logger: logger}
}

// FindProviders returns up to five in-network providers of the
// requested specialty that accept new patients, ordered by ascending
// distance; when two distances differ by less than a kilometre the
// higher-rated provider sorts first.
func (d *Directory) FindProviders(ctx context.Context, in DirectoryInput) (*DirectoryOutput, error) {
	taskID, err := d.ledger.Begin(ctx, task.TypeDirectory, in.ReferralID, in)
	if err != nil {
		return nil, err
	}

	var matches []referral.Provider
	for _, p := range d.providers {
		if !strings.EqualFold(p.Specialty, in.Specialty) {
			continue
		}
		if !p.AcceptingNewPatients || !p.InNetwork {
			continue
		}
		matches = append(matches, p)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		diff := matches[i].DistanceKm - matches[j].DistanceKm
		if math.Abs(diff) < 1 {
			return matches[i].Rating > matches[j].Rating
		}
		return diff < 0
	})

	if len(matches) > maxDirectoryResults {
		matches = matches[:maxDirectoryResults]
	}

	d.logger.Info("directory matched providers",
		zap.String("referral", in.ReferralID),
		zap.String("specialty", in.Specialty),
		zap.Int("count", len(matches)))

	out := &DirectoryOutput{Providers: matches}
	if err := d.ledger.Complete(ctx, taskID, out); err != nil {
		d.logger.Warn("ledger complete failed", zap.String("task", taskID), zap.Error(err))
	}
	return out, nil
}

// ProvidersByNPI returns the providers matching the given NPI numbers.
func (d *Directory) ProvidersByNPI(npiNumbers []string) []referral.Provider {
	want := make(map[string]bool, len(npiNumbers))
	for _, n := range npiNumbers {
		want[n] = true
	}
	var out []referral.Provider
	for _, p := range d.providers {
		if want[p.NPINumber] {
			out = append(out, p)
		}
	}
	return out
}

// SearchByName returns providers whose name contains the query,
// optionally narrowed to one specialty.
func (d *Directory) SearchByName(name, specialty string) []referral.Provider {
	var out []referral.Provider
	for _, p := range d.providers {
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			continue
		}
		if specialty != "" && !strings.EqualFold(p.Specialty, specialty) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ProvidersWithinRadius returns providers within radiusKm of the patient.
func (d *Directory) ProvidersWithinRadius(radiusKm float64) []referral.Provider {
	var out []referral.Provider
	for _, p := range d.providers {
		if p.DistanceKm <= radiusKm {
			out = append(out, p)
		}
	}
	return out
}
