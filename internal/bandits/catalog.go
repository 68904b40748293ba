package bandits

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"airguard/internal/dot11"
	"airguard/internal/model"
)

// IdentifierDefinition is the stored form of one identifier.
type IdentifierDefinition struct {
	Type          string         `json:"type"`
	Configuration map[string]any `json:"configuration"`
	DatabaseID    int64          `json:"id,omitempty"`
	UUID          uuid.UUID      `json:"uuid"`
}

// Definition is the stored form of a bandit signature.
type Definition struct {
	UUID         uuid.UUID              `json:"uuid"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	IsCustom     bool                   `json:"is_custom"`
	Fingerprints []string               `json:"fingerprints,omitempty"`
	Identifiers  []IdentifierDefinition `json:"identifiers"`
}

type Signature struct {
	ID           uuid.UUID
	IsCustom     bool
	Name         string
	Description  string
	Fingerprints []string
	Identifiers  []Identifier

	matchers []Identifier
}

// Hit is a signature together with the identifier that matched the frame.
type Hit struct {
	Signature  *Signature
	Identifier Identifier
}

// Catalog is an immutable set of signatures. Evaluate may be called from any
// number of goroutines.
type Catalog struct {
	signatures []*Signature
}

func NewCatalog(sigs ...Signature) *Catalog {
	c := &Catalog{signatures: make([]*Signature, 0, len(sigs))}
	for i := range sigs {
		s := sigs[i]
		s.matchers = make([]Identifier, 0, len(s.Fingerprints)+len(s.Identifiers))
		for _, fp := range s.Fingerprints {
			s.matchers = append(s.matchers, NewFingerprintIdentifier(fp, nil))
		}
		s.matchers = append(s.matchers, s.Identifiers...)
		c.signatures = append(c.signatures, &s)
	}
	return c
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.signatures)
}

func (c *Catalog) Signatures() []*Signature {
	if c == nil {
		return nil
	}
	out := make([]*Signature, len(c.signatures))
	copy(out, c.signatures)
	return out
}

// Evaluate returns one hit per signature with at least one identifier
// answering a definitive match. Identifiers without an opinion are skipped.
func (c *Catalog) Evaluate(f dot11.Frame) []Hit {
	if c == nil || f == nil {
		return nil
	}
	var hits []Hit
	for _, s := range c.signatures {
		for _, id := range s.matchers {
			if match, ok := id.Matches(f); ok && match {
				hits = append(hits, Hit{Signature: s, Identifier: id})
				break
			}
		}
	}
	return hits
}

// BuildCatalog turns definitions into a catalog. A definition with a broken
// identifier is dropped on its own; its error is logged and returned next to
// the catalog built from the rest.
func BuildCatalog(defs []Definition, logger *slog.Logger) (*Catalog, []error) {
	var (
		sigs []Signature
		errs []error
	)
	for _, d := range defs {
		sig, err := d.Signature()
		if err != nil {
			errs = append(errs, err)
			if logger != nil {
				logger.Warn("bandit signature dropped", "bandit", d.Name, "uuid", d.UUID, "error", err)
			}
			continue
		}
		sigs = append(sigs, sig)
	}
	return NewCatalog(sigs...), errs
}

func (d Definition) Signature() (Signature, error) {
	sig := Signature{
		ID:           d.UUID,
		IsCustom:     d.IsCustom,
		Name:         d.Name,
		Description:  d.Description,
		Fingerprints: append([]string(nil), d.Fingerprints...),
	}
	for _, idef := range d.Identifiers {
		var identity *Identity
		if idef.DatabaseID != 0 || idef.UUID != uuid.Nil {
			identity = &Identity{DatabaseID: idef.DatabaseID, UUID: idef.UUID}
		}
		id, err := NewIdentifier(idef.Type, idef.Configuration, identity)
		if err != nil {
			return Signature{}, fmt.Errorf("bandit %q: %w", d.Name, err)
		}
		sig.Identifiers = append(sig.Identifiers, id)
	}
	return sig, nil
}

func FromRows(rows []model.BanditRow) []Definition {
	out := make([]Definition, 0, len(rows))
	for _, r := range rows {
		d := Definition{
			UUID:         r.UUID,
			Name:         r.Name,
			Description:  r.Description,
			IsCustom:     r.IsCustom,
			Fingerprints: r.Fingerprints,
		}
		for _, ir := range r.Identifiers {
			d.Identifiers = append(d.Identifiers, IdentifierDefinition{
				Type:          ir.Type,
				Configuration: ir.Configuration,
				DatabaseID:    ir.ID,
				UUID:          ir.UUID,
			})
		}
		out = append(out, d)
	}
	return out
}

// ToRow converts a definition into its storage row. Missing identifier UUIDs
// are assigned.
func ToRow(d Definition) model.BanditRow {
	row := model.BanditRow{
		UUID:         d.UUID,
		IsCustom:     d.IsCustom,
		Name:         d.Name,
		Description:  d.Description,
		Fingerprints: d.Fingerprints,
	}
	if row.UUID == uuid.Nil {
		row.UUID = uuid.New()
	}
	for _, idef := range d.Identifiers {
		id := idef.UUID
		if id == uuid.Nil {
			id = uuid.New()
		}
		row.Identifiers = append(row.Identifiers, model.IdentifierRow{
			ID:            idef.DatabaseID,
			UUID:          id,
			Type:          idef.Type,
			Configuration: idef.Configuration,
		})
	}
	return row
}
