package tracker

import "github.com/psychicsniffle/sniffle/internal/prng"

// Uniform performs no analysis; every byte it produces is uniformly random
type Uniform struct {
	size int
}

// NewUniform creates a uniform analyser for genomes of size bytes
func NewUniform(size int) *Uniform {
	return &Uniform{size: size}
}

func (u *Uniform) Reset() {}

func (u *Uniform) Crank(genomes [][]byte, elite []int) error {
	return nil
}

func (u *Uniform) MutateByte(genome []byte, r *prng.Stream) {
	genome[r.Intn(u.size)] = r.Byte()
}

func (u *Uniform) Randomize(genome []byte, r *prng.Stream) {
	for i := range genome[:u.size] {
		genome[i] = r.Byte()
	}
}
