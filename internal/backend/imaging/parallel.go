package imaging

import (
	"runtime"
	"sync"
)

// parallelRows runs fn(y) for every row in [0, n) on up to GOMAXPROCS
// workers. Rows are strided across workers to balance uneven cost. Each row
// is computed independently, so the result does not depend on scheduling.
func parallelRows(n int, fn func(y int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for y := 0; y < n; y++ {
			fn(y)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(start int) {
			defer wg.Done()
			for y := start; y < n; y += workers {
				fn(y)
			}
		}(w)
	}
	wg.Wait()
}
