package shaper

import (
	"github.com/okian/trigml/internal/domain/event"
	"github.com/okian/trigml/internal/domain/matrix"
	"github.com/okian/trigml/internal/domain/model"
)

// topo lays out [MET_pt, MET_phi, jets, muons, egammas].
type topo struct{}

func (topo) Width(cfg model.Config) int {
	return 2 + fieldsPerObject*(cfg.NJets+cfg.NMuons+cfg.NEgammas)
}

func (t topo) Shape(b *event.Batch, cfg model.Config) (matrix.Matrix, error) {
	if err := checkCounts(b); err != nil {
		return matrix.Matrix{}, err
	}
	met, err := ExtractMET(b.Sums)
	if err != nil {
		return matrix.Matrix{}, err
	}

	out := matrix.NewMatrix(b.Len(), t.Width(cfg))
	jetsAt := 2
	muonsAt := jetsAt + fieldsPerObject*cfg.NJets
	egammasAt := muonsAt + fieldsPerObject*cfg.NMuons
	for i := 0; i < out.Rows; i++ {
		row := out.Row(i)
		row[0] = met[i].Pt
		row[1] = met[i].Phi
		fill(row[jetsAt:muonsAt], b.Jets, i, cfg.NJets)
		fill(row[muonsAt:egammasAt], b.Muons, i, cfg.NMuons)
		fill(row[egammasAt:], b.EGammas, i, cfg.NEgammas)
	}
	return out, nil
}
