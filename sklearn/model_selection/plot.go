package model_selection

import (
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/sentsim/pkg/errors"
)

// PlotScores renders mean test (and train, when collected) score per
// candidate index. The image format follows the file extension (.png,
// .svg, .pdf, ...).
func (r *CVResults) PlotScores(path string) error {
	if len(r.MeanTestScore) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "no candidates to plot")
	}

	p := plot.New()
	p.Title.Text = "Grid search scores"
	p.X.Label.Text = "Candidate"
	p.Y.Label.Text = r.Scoring
	p.Add(plotter.NewGrid())

	test, testPoints, err := plotter.NewLinePoints(scoreXYs(r.MeanTestScore))
	if err != nil {
		return errors.Wrap(err, "failed to build test score line")
	}
	p.Add(test, testPoints)
	p.Legend.Add("mean_test_score", test, testPoints)

	if r.HasTrainScores() {
		train, err := plotter.NewLine(scoreXYs(r.MeanTrainScore))
		if err != nil {
			return errors.Wrap(err, "failed to build train score line")
		}
		train.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(train)
		p.Legend.Add("mean_train_score", train)
	}
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %s", path)
	}
	return nil
}

func scoreXYs(scores []float64) plotter.XYs {
	pts := make(plotter.XYs, len(scores))
	for i, s := range scores {
		pts[i].X = float64(i)
		pts[i].Y = s
	}
	return pts
}
