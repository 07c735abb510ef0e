package fileapi

import (
	"fmt"
	"html"
)

// DefaultIndexHTML returns the page a new project starts with.
func DefaultIndexHTML(title string) string {
	t := html.EscapeString(title)
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; min-height: 100vh; margin: 0; }
        main { text-align: center; padding: 2rem; }
    </style>
</head>
<body>
    <main>
        <h1>%s</h1>
        <p>Edit index.html to get started.</p>
    </main>
</body>
</html>
`, t, t)
}
