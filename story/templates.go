package story

// Built-in story templates, one per supported locale style. Variables
// come from the run configuration; referencing an undefined one is a
// template error, not silent blanks in a published draft.

const templateStoryJP = `# {{.headline}}（最終更新：{{.last_updated}}）

**3行要約**

- {{.sum1}}
- {{.sum2}}
- {{.sum3}}

## 全体像（なぜ重要か）

{{.overview}}

## タイムライン

{{.timeline}}

## いま時点の理解

{{.understanding}}

## 次の注目ポイント

{{.watch_next}}

—

出典まとめ：

{{.refs}}
`

const templateStoryEN = `# {{.headline}} (Last updated: {{.last_updated}})

**In 3 bullets**

- {{.sum1}}
- {{.sum2}}
- {{.sum3}}

## Why it matters

{{.overview}}

## Timeline

{{.timeline}}

## Where we are now

{{.understanding}}

## Watch next

{{.watch_next}}

—

Sources:

{{.refs}}
`

var templates = map[string]string{
	"story_jp": templateStoryJP,
	"story_en": templateStoryEN,
}

// KnownTemplate reports whether a template name is registered.
func KnownTemplate(name string) bool {
	_, ok := templates[name]
	return ok
}
