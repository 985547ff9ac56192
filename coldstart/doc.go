// Package coldstart seeds embedding rows for items without interaction
// history.
//
// New catalog items start from random initialization and only become
// recommendable after enough interactions arrive. The Bootstrapper embeds
// catalog text (title and tags) with an external embedding service, projects
// the text vector down to the model dimension with a seeded Gaussian random
// projection, and writes the normalized, scaled result into the item table.
// Items with related text start near each other, so they pick up each
// other's training signal from the first update.
//
// The package defines the Embedder interface; coldstart/openai implements it
// against OpenAI-compatible APIs. Tests inject fakes.
package coldstart
