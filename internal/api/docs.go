package api

import (
	"bytes"
	"html/template"
)

const exampleQuery = "?postcode=se1+9hl"

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>UK postcode lookup</title>
</head>
<body>
<h1>UK postcode lookup</h1>
<p>Look up the area a UK postcode belongs to.</p>
<h2>Usage</h2>
<p><code>GET /v1/{area-type}?postcode={postcode}</code></p>
<p>Area types: {{range $i, $t := .AreaTypes}}{{if $i}}, {{end}}<code>{{$t}}</code>{{end}}</p>
<p>A successful lookup answers <code>200</code> with
<code>{"status":200,"type":"…","value":"…","postcode":"OUT IN"}</code>.
Unknown or malformed postcodes answer <code>400</code> with a <code>message</code>.</p>
<h2>Examples</h2>
<ul>
{{range .Examples}}<li><a href="{{.}}"><code>{{.}}</code></a></li>
{{end}}</ul>
</body>
</html>
`))

// renderDocs builds the documentation page once for the discovered area types.
func renderDocs(areaTypes []string) ([]byte, error) {
	data := struct {
		AreaTypes []string
		Examples  []string
	}{AreaTypes: areaTypes}
	for _, t := range areaTypes {
		data.Examples = append(data.Examples, "/v1/"+t+exampleQuery)
	}
	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
