// Package scape implements a landmark-based embedding engine for
// high-dimensional data.
//
// The pipeline has three stages: a generation strategy condenses the
// dataset into a small landmark codebook (grid SOM, growing quantized tree,
// k-means, or sampling), a layout provider assigns each landmark a 2D or 3D
// coordinate (grid-derived, PCA, t-SNE, UMAP, or force-directed), and the
// projector embeds every dataset point by blending the coordinates of its
// k nearest landmarks. All stages are deterministic for a fixed seed.
//
// Basic usage with the fluent builder:
//
//	data, _ := dataset.FromRows(rows)
//
//	s := scape.SOM(20, 20).
//	    Hex().
//	    Epochs(12).
//	    Seed(7).
//	    UMAP().
//	    MustBuild()
//
//	result, err := s.Embed(ctx, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i := 0; i < result.Len(); i++ {
//	    plot(result.At(i))
//	}
//
// Fitted models snapshot to a compressed binary format and round-trip
// through files, blob stores, and the model registry:
//
//	m := s.Model()
//	_ = s.SaveModelFile(ctx, "model.scape", m)
//
// Projection is available as a fluent query against the current model:
//
//	coords, err := s.Project(data).K(5).Gaussian().Execute(ctx)
package scape
