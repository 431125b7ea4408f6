//go:build unix

package osmem

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapQueryUnmap(t *testing.T) {
	b := New()
	page := b.PageSize()

	p, err := b.Map(100, false)
	require.NoError(t, err)
	require.NotNil(t, p)

	// Mapping must be writable across its whole committed size.
	buf := unsafe.Slice((*byte)(p), page)
	buf[0], buf[page-1] = 0xAB, 0xCD

	r, err := b.Query(p)
	require.NoError(t, err)
	assert.Equal(t, p, r.Base)
	assert.Equal(t, page, r.Size, "100 bytes should round to one page")

	require.NoError(t, b.Unmap(p))

	_, err = b.Query(p)
	assert.ErrorIs(t, err, ErrNotMapped)
}

func TestQuery_InteriorPointer(t *testing.T) {
	b := New()
	page := b.PageSize()

	p, err := b.Map(3*page, false)
	require.NoError(t, err)
	defer func() { _ = b.Unmap(p) }()

	inner := unsafe.Add(p, 2*page+17)
	r, err := b.Query(inner)
	require.NoError(t, err)
	assert.Equal(t, p, r.Base)
	assert.Equal(t, 3*page, r.Size)

	_, err = b.Query(unsafe.Add(p, 3*page))
	assert.ErrorIs(t, err, ErrNotMapped, "one past the end is not inside the region")
}

func TestUnmap_Invalid(t *testing.T) {
	b := New()

	assert.ErrorIs(t, b.Unmap(nil), ErrNotMapped)

	var local [64]byte
	assert.ErrorIs(t, b.Unmap(unsafe.Pointer(&local[0])), ErrNotMapped)

	p, err := b.Map(1, false)
	require.NoError(t, err)
	require.NoError(t, b.Unmap(p))
	assert.ErrorIs(t, b.Unmap(p), ErrNotMapped, "double release must be reported")
}

func TestUnmap_InteriorPointerRejected(t *testing.T) {
	b := New()
	page := b.PageSize()

	p, err := b.Map(2*page, false)
	require.NoError(t, err)
	defer func() { _ = b.Unmap(p) }()

	assert.ErrorIs(t, b.Unmap(unsafe.Add(p, page)), ErrNotMapped)
	_, err = b.Query(p)
	assert.NoError(t, err, "failed release must leave the region intact")
}

func TestMap_ZeroSize(t *testing.T) {
	p, err := New().Map(0, false)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMap_LargePages(t *testing.T) {
	b := New()
	if b.LargePageSize() == 0 {
		_, err := b.Map(1, true)
		assert.ErrorIs(t, err, ErrLargePagesUnsupported)
		return
	}

	// Without reserved huge pages the kernel refuses; either outcome is valid
	// but a success must be rounded to the large page size.
	p, err := b.Map(1, true)
	if err != nil {
		var oe *Error
		assert.ErrorAs(t, err, &oe)
		return
	}
	r, err := b.Query(p)
	require.NoError(t, err)
	assert.Equal(t, b.LargePageSize(), r.Size)
	require.NoError(t, b.Unmap(p))
}

func TestConcurrentMapUnmap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent mmap test in short mode")
	}
	b := New()

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 64 {
				p, err := b.Map(uintptr(1+g*i), false)
				if !assert.NoError(t, err) {
					return
				}
				_, err = b.Query(p)
				assert.NoError(t, err)
				assert.NoError(t, b.Unmap(p))
			}
		}()
	}
	wg.Wait()

	ub := b.(*unixBackend)
	assert.Zero(t, ub.regions.Len(), "region table must be empty after all releases")
}

func TestRoundUp(t *testing.T) {
	tests := []struct {
		n, gran, want uintptr
	}{
		{1, 4096, 4096},
		{4096, 4096, 4096},
		{4097, 4096, 8192},
		{0, 4096, 0},
		{3 << 20, 2 << 20, 4 << 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundUp(tt.n, tt.gran), "RoundUp(%d, %d)", tt.n, tt.gran)
	}
}

func TestError(t *testing.T) {
	err := &Error{Op: "mmap", Err: ErrInvalidSize}
	assert.Equal(t, "osmem: mmap: osmem: invalid mapping size", err.Error())
	assert.ErrorIs(t, err, ErrInvalidSize)
	assert.Equal(t, "osmem: query", (&Error{Op: "query"}).Error())
}
