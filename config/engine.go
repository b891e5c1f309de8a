package config

import (
	"github.com/scapelab/scape"
	"github.com/scapelab/scape/layout/force"
	"github.com/scapelab/scape/layout/tsne"
	"github.com/scapelab/scape/layout/umap"
)

// layoutable is the layout-selection surface shared by every strategy
// builder.
type layoutable interface {
	PCA() scape.EngineBuilder
	TSNE(optFns ...func(o *tsne.Options)) scape.EngineBuilder
	UMAP(optFns ...func(o *umap.Options)) scape.EngineBuilder
	Force(optFns ...func(o *force.Options)) scape.EngineBuilder
}

func (p *Pipeline) engineBuilder() (scape.EngineBuilder, error) {
	g := p.Generator

	switch g.Strategy {
	case "som":
		b := scape.SOM(g.Rows, g.Cols).Seed(g.Seed).Workers(g.Workers)
		if g.Epochs != nil {
			b = b.Epochs(*g.Epochs)
		}
		if g.Hex {
			b = b.Hex()
		}
		if g.Depth > 0 {
			b = b.Depth(g.Depth)
		}
		if p.Layout.Provider == "" || p.Layout.Provider == "grid" {
			return b.Grid(), nil
		}
		return p.selectLayout(b)
	case "gqt":
		b := scape.GQT(g.Target).Seed(g.Seed).Workers(g.Workers)
		return p.selectLayout(b)
	case "kmeans":
		b := scape.KMeans(g.K).Seed(g.Seed)
		return p.selectLayout(b)
	case "sample", "sample-knn":
		b := scape.Sample(g.N).Seed(g.Seed)
		if g.Strategy == "sample-knn" {
			b = b.KNN(g.KNN)
		}
		return p.selectLayout(b)
	default:
		return scape.EngineBuilder{}, &FieldError{Field: "generator.strategy", Value: g.Strategy}
	}
}

func (p *Pipeline) selectLayout(b layoutable) (scape.EngineBuilder, error) {
	l := p.Layout

	switch l.Provider {
	case "", "pca":
		return b.PCA(), nil
	case "tsne":
		return b.TSNE(func(o *tsne.Options) {
			if l.Perplexity > 0 {
				o.Perplexity = l.Perplexity
			}
			if l.Iterations > 0 {
				o.Iterations = l.Iterations
			}
			if l.LearningRate > 0 {
				o.LearningRate = l.LearningRate
			}
			o.Seed = l.Seed
		}), nil
	case "umap":
		return b.UMAP(func(o *umap.Options) {
			if l.Neighbors > 0 {
				o.Neighbors = l.Neighbors
			}
			if l.MinDist > 0 {
				o.MinDist = l.MinDist
			}
			if l.Spread > 0 {
				o.Spread = l.Spread
			}
			if l.Epochs > 0 {
				o.Epochs = l.Epochs
			}
			if l.LearningRate > 0 {
				o.LearningRate = l.LearningRate
			}
			o.Seed = l.Seed
		}), nil
	case "force":
		return b.Force(func(o *force.Options) {
			if l.Iterations > 0 {
				o.Iterations = l.Iterations
			}
			if l.Neighbors > 0 {
				o.Neighbors = l.Neighbors
			}
			o.Seed = l.Seed
		}), nil
	default:
		return scape.EngineBuilder{}, &FieldError{Field: "layout.provider", Value: l.Provider}
	}
}
