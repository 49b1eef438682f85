// Package all imports all supported package-source implementations.
//
// Import this package for its side effects to register every source kind:
//
//	import (
//		"github.com/git-pkgs/nupkg"
//		_ "github.com/git-pkgs/nupkg/all"
//	)
//
//	// Now all source kinds are available
//	kinds := nupkg.SupportedKinds()
//	// ["local", "v2", "v3"]
package all

import (
	_ "github.com/git-pkgs/nupkg/internal/local"
	_ "github.com/git-pkgs/nupkg/internal/remotev2"
	_ "github.com/git-pkgs/nupkg/internal/remotev3"
)
