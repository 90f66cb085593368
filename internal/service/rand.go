package service

import "math/rand/v2"

const pcgStream = 0x9e3779b97f4a7c15

// NewRand returns a PCG-backed source for one bot. A zero seed picks a random one.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}

	return rand.New(rand.NewPCG(seed, pcgStream))
}

// NewBotFactory returns a constructor that gives every call its own random source, so
// the bots it builds can be used from different goroutines.
func NewBotFactory(mode Mode, opts ...BotOption) func() BotService {
	return func() BotService {
		return NewBotService(mode, NewRand(0), opts...)
	}
}
