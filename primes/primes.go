// Package primes maintains the sorted prime cache backing the stream cipher
// key schedule. Generating the cache is expensive, so it is persisted one
// prime per line and reloaded on later runs.
package primes

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// DefaultLimit is the sieve bound the cache was designed around. Both ends
// of an encrypted connection must agree on it.
const DefaultLimit = 1 << 24

// Cache holds an ascending list of primes.
type Cache struct {
	primes []int
}

// Generate sieves every prime strictly below limit.
func Generate(limit int) *Cache {
	if limit < 3 {
		return &Cache{}
	}
	composite := make([]bool, limit)
	var out []int
	for n := 2; n < limit; n++ {
		if composite[n] {
			continue
		}
		out = append(out, n)
		for k := n * n; k < limit; k += n {
			composite[k] = true
		}
	}
	return &Cache{primes: out}
}

// Load reads a previously saved cache.
func Load(path string) (*Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("prime cache %s: %w", path, err)
		}
		out = append(out, n)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("prime cache %s is empty", path)
	}
	return &Cache{primes: out}, nil
}

// Save writes the cache one prime per line.
func (c *Cache) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, p := range c.primes {
		if _, err := fmt.Fprintln(w, p); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Ensure loads the cache at path, generating and saving it on first use.
func Ensure(path string, limit int) (*Cache, error) {
	cache, err := Load(path)
	if err == nil {
		return cache, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	cache = Generate(limit)
	if err := cache.Save(path); err != nil {
		return nil, err
	}
	return cache, nil
}

func (c *Cache) Len() int {
	return len(c.primes)
}

// Biggest returns the largest cached prime, 0 for an empty cache.
func (c *Cache) Biggest() int {
	if len(c.primes) == 0 {
		return 0
	}
	return c.primes[len(c.primes)-1]
}

// Contains reports whether n is a cached prime.
func (c *Cache) Contains(n int) bool {
	i := sort.SearchInts(c.primes, n)
	return i < len(c.primes) && c.primes[i] == n
}

// Lower returns the greatest prime strictly below n, or 0 when none is cached.
func (c *Cache) Lower(n int) int {
	i := sort.SearchInts(c.primes, n)
	if i == 0 {
		return 0
	}
	return c.primes[i-1]
}

// Upper returns the smallest prime strictly above n, or 0 when none is cached.
func (c *Cache) Upper(n int) int {
	i := sort.SearchInts(c.primes, n+1)
	if i == len(c.primes) {
		return 0
	}
	return c.primes[i]
}
