package gpu

// TransferBuffer pairs CPU staging bytes with the device buffer they upload
// into. The device buffer only grows: a smaller requirement reuses the
// existing allocation, a larger one replaces it.
type TransferBuffer struct {
	label   string
	data    []byte
	used    int
	gpu     Buffer
	gpuSize int
}

func NewTransferBuffer(label string) *TransferBuffer {
	return &TransferBuffer{label: label}
}

// Reserve sizes the staging area for exactly size bytes and zeroes it.
func (t *TransferBuffer) Reserve(size int) {
	if cap(t.data) < size {
		t.data = make([]byte, size)
	}
	t.data = t.data[:size]
	for i := range t.data {
		t.data[i] = 0
	}
	t.used = size
}

// Bytes returns the staging area.
func (t *TransferBuffer) Bytes() []byte { return t.data }

// Flush uploads the staging bytes, reallocating the device buffer only when
// the requirement outgrew it.
func (t *TransferBuffer) Flush(dev Device) Buffer {
	if t.used == 0 {
		return t.gpu
	}
	if t.gpu == nil || t.gpuSize < t.used {
		if t.gpu != nil {
			t.gpu.Release()
		}
		t.gpu = dev.CreateBuffer(t.label, t.used)
		t.gpuSize = t.used
	}
	dev.WriteBuffer(t.gpu, 0, t.data[:t.used])
	return t.gpu
}

// GPU returns the current device buffer, nil before the first flush.
func (t *TransferBuffer) GPU() Buffer { return t.gpu }

func (t *TransferBuffer) Release() {
	if t.gpu != nil {
		t.gpu.Release()
		t.gpu = nil
		t.gpuSize = 0
	}
}
