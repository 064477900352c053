package shaper

import (
	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/model"
)

// anomaly lays out the particle list of the anomaly-detection datasets:
// a full MET slot (pt, 0, phi) followed by egammas, muons and jets.
type anomaly struct{}

func (anomaly) Width(cfg model.Config) int {
	return fieldsPerObject * (1 + cfg.NEgammas + cfg.NMuons + cfg.NJets)
}

func (a anomaly) Shape(b *event.Batch, cfg model.Config) (matrix.Matrix, error) {
	if err := checkCounts(b); err != nil {
		return matrix.Matrix{}, err
	}
	met, err := ExtractMET(b.Sums)
	if err != nil {
		return matrix.Matrix{}, err
	}

	out := matrix.NewMatrix(b.Len(), a.Width(cfg))
	egammasAt := fieldsPerObject
	muonsAt := egammasAt + fieldsPerObject*cfg.NEgammas
	jetsAt := muonsAt + fieldsPerObject*cfg.NMuons
	for i := 0; i < out.Rows; i++ {
		row := out.Row(i)
		row[0] = met[i].Pt
		row[2] = met[i].Phi
		fill(row[egammasAt:muonsAt], b.EGammas, i, cfg.NEgammas)
		fill(row[muonsAt:jetsAt], b.Muons, i, cfg.NMuons)
		fill(row[jetsAt:], b.Jets, i, cfg.NJets)
	}
	return out, nil
}
