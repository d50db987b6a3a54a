//go:build rescache_debug

package rescache

const debugging = true

func assert(cond bool, message string) {
	if !cond {
		panic(message)
	}
}
