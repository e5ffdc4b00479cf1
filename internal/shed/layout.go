package shed

import (
	"fmt"
	"unsafe"
)

const wordSize = 4

// Header words.
const (
	hdrTaskGeneration = iota
	hdrTaskPoolStamp
	hdrTaskPoolHead
	hdrDependencyPoolStamp
	hdrDependencyPoolHead
	hdrReadyStamp
	hdrMaxTasks
	hdrMaxDependencies
	hdrChannels
	headerWords
)

// Task record words.
const (
	taskID = iota
	taskPending
	taskState
	taskChannel
	taskFirstDependency
	taskWords
)

// Dependency edge words.
const (
	edgeParent = iota
	edgeNext
	edgeWords
)

// layout holds word offsets of every region inside the block. Each region
// starts on an 8-byte boundary.
type layout struct {
	tasks      int
	edges      int
	taskLinks  int
	edgeLinks  int
	readyHeads int
	readyLinks int
	words      int
}

func alignWords(n int) int {
	return (n + 1) &^ 1
}

func computeLayout(maxTasks, maxDependencies uint32, channelCount uint8) layout {
	var l layout
	offset := alignWords(headerWords)
	l.tasks = offset
	offset = alignWords(offset + int(maxTasks)*taskWords)
	l.edges = offset
	offset = alignWords(offset + int(maxDependencies)*edgeWords)
	l.taskLinks = offset
	offset = alignWords(offset + int(maxTasks))
	l.edgeLinks = offset
	offset = alignWords(offset + int(maxDependencies))
	l.readyHeads = offset
	offset = alignWords(offset + int(channelCount))
	l.readyLinks = offset
	offset = alignWords(offset + int(maxTasks))
	l.words = offset
	return l
}

// RequiredSize returns the number of bytes a scheduler with the given
// capacities occupies. It is a pure function of its arguments.
func RequiredSize(maxTasks, maxDependencies uint32, channelCount uint8) int {
	return computeLayout(maxTasks, maxDependencies, channelCount).words * wordSize
}

// AlignedBuffer returns a zeroed block of at least size bytes whose first
// byte is 8-byte aligned.
func AlignedBuffer(size int) []byte {
	if size <= 0 {
		return nil
	}
	backing := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(backing))), size)
}

// wordView reinterprets the first words*4 bytes of mem as uint32 words.
func wordView(mem []byte, words int) ([]uint32, error) {
	need := words * wordSize
	if len(mem) < need {
		return nil, fmt.Errorf("%w: memory block holds %d bytes, need %d", ErrInvalidConfig, len(mem), need)
	}
	base := unsafe.Pointer(unsafe.SliceData(mem))
	if uintptr(base)%8 != 0 {
		return nil, fmt.Errorf("%w: memory block is not 8-byte aligned", ErrInvalidConfig)
	}
	return unsafe.Slice((*uint32)(base), words), nil
}
