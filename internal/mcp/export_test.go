package mcp

// WithMemoryCache exposes withMemoryCache to the external test package.
var WithMemoryCache = withMemoryCache
