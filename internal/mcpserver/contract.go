package mcpserver

// TileFormatContract describes the tile fields and conventions that LLM
// consumers should follow when creating or updating tiles.
const TileFormatContract = `# Tiledash Tile Format Contract

A dashboard is an ordered grid of tiles. Regular tiles come first; the
single large "todo-notes" tile always sits after them.

## Fields

| Field       | Rules |
|-------------|-------|
| title       | REQUIRED, 1-200 characters |
| color       | ` + "`" + `#rrggbb` + "`" + ` hex; invalid colors fall back to the default palette |
| icon        | icon name such as ` + "`" + `flask-conical` + "`" + `, ` + "`" + `camera` + "`" + `, ` + "`" + `folder-open` + "`" + ` |
| content     | rich text HTML; keep to ` + "`" + `<p>` + "`" + `, ` + "`" + `<ul>` + "`" + `, ` + "`" + `<li>` + "`" + `, ` + "`" + `<strong>` + "`" + `, ` + "`" + `<em>` + "`" + ` |
| status      | free text, ` + "`" + `done` + "`" + ` hides the tile from overdue views |
| priority    | free text such as ` + "`" + `low` + "`" + `, ` + "`" + `medium` + "`" + `, ` + "`" + `high` + "`" + ` |
| progress    | integer 0-100 |
| dueDate     | ` + "`" + `YYYY-MM-DD` + "`" + ` |
| dependsOn   | ids of tiles that must finish first; a tile may not depend on itself |

## Rules

1. Use ` + "`" + `append_note` + "`" + ` for quick notes instead of rewriting ` + "`" + `content` + "`" + `.
   Notes are escaped and appended as ` + "`" + `<p>• text</p>` + "`" + `.
2. Dependency cycles are allowed but raise a warning notification.
3. ` + "`" + `reorder_tiles` + "`" + ` only moves regular tiles; the large tile stays last.
4. Photos are attached with ` + "`" + `attach_photo` + "`" + `; images get a thumbnail automatically.
   Supported formats: png, jpg, jpeg, gif, webp.

## Example

` + "```" + `json
{
  "title": "Harbour survey",
  "color": "#0284c7",
  "icon": "ship",
  "dueDate": "2026-06-01",
  "content": "<p>Book the launch for the north dock.</p>"
}
` + "```" + `
`
