// Package seed bulk-imports catalog and request data from a YAML document.
// Intended for initial provisioning and demo environments; records are
// created through the service so every rule and validation still applies.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"facilitycore/internal/core"
	"facilitycore/pkg/domain"
)

// File is the root of the YAML document.
type File struct {
	Locations []LocationSpec `yaml:"locations"`
	Assets    []AssetSpec    `yaml:"assets"`
	Requests  []RequestSpec  `yaml:"requests"`
}

// LocationSpec declares one location; children nest under their parent.
type LocationSpec struct {
	Name     string         `yaml:"name"`
	Notes    string         `yaml:"notes"`
	Children []LocationSpec `yaml:"children"`
}

// AssetSpec declares one asset. Location references the location name; an
// empty tag is auto-generated per category.
type AssetSpec struct {
	Tag          string `yaml:"tag"`
	Name         string `yaml:"name"`
	Category     string `yaml:"category"`
	Location     string `yaml:"location"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	SerialNumber string `yaml:"serial_number"`
	Status       string `yaml:"status"`
	Criticality  string `yaml:"criticality"`
	InstallDate  string `yaml:"install_date"` // YYYY-MM-DD
	Description  string `yaml:"description"`
}

// RequestSpec declares one repair request referencing catalog entries by
// location name and asset tag.
type RequestSpec struct {
	Title          string `yaml:"title"`
	Description    string `yaml:"description"`
	Location       string `yaml:"location"`
	Asset          string `yaml:"asset"` // asset tag, optional
	Priority       string `yaml:"priority"`
	RequesterName  string `yaml:"requester_name"`
	RequesterEmail string `yaml:"requester_email"`
	RequesterPhone string `yaml:"requester_phone"`
}

// Summary reports what an import created.
type Summary struct {
	Locations int
	Assets    int
	Requests  int
}

// Load parses a seed document.
func Load(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, nil
}

// LoadPath parses a seed document from disk.
func LoadPath(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer func() { _ = fh.Close() }()
	return Load(fh)
}

// Apply imports the document through the service as the given actor (must
// hold the manage-catalog capability for locations and assets). Duplicate
// location names within the document are an error; references are resolved
// within the document only.
func Apply(ctx context.Context, svc *core.Service, actor domain.Actor, f File) (Summary, error) {
	var sum Summary
	locationIDs := make(map[string]string)

	var importLocations func(specs []LocationSpec, parentID *string) error
	importLocations = func(specs []LocationSpec, parentID *string) error {
		for _, spec := range specs {
			if _, dup := locationIDs[spec.Name]; dup {
				return fmt.Errorf("duplicate location name %q", spec.Name)
			}
			loc, _, err := svc.CreateLocation(ctx, actor, domain.Location{
				Name:     spec.Name,
				ParentID: parentID,
				Notes:    spec.Notes,
			})
			if err != nil {
				return fmt.Errorf("location %q: %w", spec.Name, err)
			}
			locationIDs[spec.Name] = loc.ID
			sum.Locations++
			if err := importLocations(spec.Children, &loc.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := importLocations(f.Locations, nil); err != nil {
		return sum, err
	}

	assetIDsByTag := make(map[string]string)
	for _, spec := range f.Assets {
		locID, ok := locationIDs[spec.Location]
		if !ok {
			return sum, fmt.Errorf("asset %q: unknown location %q", spec.Name, spec.Location)
		}
		asset := domain.Asset{
			AssetTag:     spec.Tag,
			Name:         spec.Name,
			Category:     domain.AssetCategory(spec.Category),
			LocationID:   locID,
			Manufacturer: spec.Manufacturer,
			Model:        spec.Model,
			SerialNumber: spec.SerialNumber,
			Status:       domain.AssetStatus(spec.Status),
			Criticality:  domain.Criticality(spec.Criticality),
			Description:  spec.Description,
		}
		if spec.InstallDate != "" {
			installed, err := time.Parse("2006-01-02", spec.InstallDate)
			if err != nil {
				return sum, fmt.Errorf("asset %q: install_date: %w", spec.Name, err)
			}
			asset.InstallDate = &installed
		}
		created, _, err := svc.CreateAsset(ctx, actor, asset)
		if err != nil {
			return sum, fmt.Errorf("asset %q: %w", spec.Name, err)
		}
		assetIDsByTag[created.AssetTag] = created.ID
		sum.Assets++
	}

	for _, spec := range f.Requests {
		locID, ok := locationIDs[spec.Location]
		if !ok {
			return sum, fmt.Errorf("request %q: unknown location %q", spec.Title, spec.Location)
		}
		in := core.CreateRequestInput{
			Title:          spec.Title,
			Description:    spec.Description,
			LocationID:     locID,
			Priority:       domain.Priority(spec.Priority),
			RequesterName:  spec.RequesterName,
			RequesterEmail: spec.RequesterEmail,
			RequesterPhone: spec.RequesterPhone,
		}
		if spec.Asset != "" {
			assetID, ok := assetIDsByTag[spec.Asset]
			if !ok {
				return sum, fmt.Errorf("request %q: unknown asset tag %q", spec.Title, spec.Asset)
			}
			in.AssetID = &assetID
		}
		if _, _, err := svc.CreateRequest(ctx, in); err != nil {
			return sum, fmt.Errorf("request %q: %w", spec.Title, err)
		}
		sum.Requests++
	}
	return sum, nil
}
