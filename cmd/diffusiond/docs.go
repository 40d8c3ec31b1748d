package main

// General API documentation for swaggo. Regenerate docs/ with
// `swag init -g cmd/diffusiond/docs.go -o docs` from the module root.
//
// @title           diffusiond API
// @version         1.0
// @description     HTTP API for text-to-image generation with a single resident diffusion pipeline.
//
// @contact.name   diffusiond maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
