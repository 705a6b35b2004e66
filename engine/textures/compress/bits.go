package compress

// bitWriter packs values LSB first into a 16-byte block, the layout used
// by BC6H and BC7.
type bitWriter struct {
	block [16]byte
	pos   uint
}

func (w *bitWriter) write(value uint32, count uint) {
	for i := uint(0); i < count; i++ {
		if value&(1<<i) != 0 {
			w.block[w.pos>>3] |= 1 << (w.pos & 7)
		}
		w.pos++
	}
}

type bitReader struct {
	block []byte
	pos   uint
}

func (r *bitReader) read(count uint) uint32 {
	var v uint32
	for i := uint(0); i < count; i++ {
		if r.block[r.pos>>3]&(1<<(r.pos&7)) != 0 {
			v |= 1 << i
		}
		r.pos++
	}
	return v
}
