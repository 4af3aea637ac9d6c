// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Profiling:
// go build ./internal/cmd/ecsprofile
// go tool pprof -http=":8000" -nodefraction=0.001 ./ecsprofile mem.pprof

package main

import (
	"flag"
	"math"

	"github.com/pkg/profile"
	"honnef.co/go/retro/ecs"
)

func main() {
	var (
		rounds   int
		iters    int
		entities int
		mode     string
	)
	flag.IntVar(&rounds, "rounds", 50, "Number of world rebuilds")
	flag.IntVar(&iters, "iters", 1000, "Iterations per world")
	flag.IntVar(&entities, "entities", 1000, "Entities per iteration")
	flag.StringVar(&mode, "profile", "mem", "Profile kind: mem or cpu")
	flag.Parse()

	var opt func(*profile.Profile)
	switch mode {
	case "cpu":
		opt = profile.CPUProfile
	default:
		opt = profile.MemProfileAllocs
	}
	p := profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook)
	run(rounds, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for range rounds {
		w := ecs.NewWorld()
		transforms := ecs.NewTransformSystem(w)

		for range iters {
			created := make([]ecs.Entity, 0, numEntities)
			for i := range numEntities {
				e := w.CreateEntity()
				ecs.SetComponent(w, e, ecs.Position{X: float32(i), Y: 1, Z: 2})
				ecs.SetComponent(w, e, ecs.Rotation{Y: math.Pi / 4})
				ecs.SetComponent(w, e, ecs.LocalToWorld{})
				created = append(created, e)
			}
			transforms.Update()
			for _, e := range created {
				w.DestroyEntity(e)
			}
		}
	}
}
