//go:build !rescache_debug

package rescache

const debugging = false

func assert(bool, string) {}
