package decision

import "math/rand/v2"

type defaultRandom struct{}

func (defaultRandom) Float64() float64 { return rand.Float64() }
