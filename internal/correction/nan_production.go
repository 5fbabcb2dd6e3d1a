//go:build production

package correction

const nanDiagnostics = false
