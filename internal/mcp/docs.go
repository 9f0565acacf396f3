package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `oxyregistry tracks OXY token batches for carbon projects.

Model:
- Project: numbered 1, 2, 3... by create_project.
- Batch (token id): created under one project by create_token_batch. Ids come from one global counter shared by all projects.
- Mint: attaches an amount and a serial number to a batch. Until minted, amount is 0 and the serial is empty.

Workflow:
1) get_counters to see how many projects and batches exist.
2) create_project, then create_token_batch(project_id), then mint(token_id, amount, serial_number).
3) get_batch / list_project_batches / get_recent_activity to read back.

See oxy://docs/registry for error codes and edge cases.
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "oxy://docs/registry",
		Name:        "docs_registry",
		Title:       "Registry reference",
		Description: "Identifiers, mint semantics and error codes of the token registry.",
		Content: `# Registry reference

## Identifiers

- Project ids start at 1. The n-th successful create_project returns n.
- Token ids (batches) start at 1 and are global: if project 1 owns batches 1 and 2,
  the first batch of project 2 is 3.
- A failed call never consumes an id.

## Mint

- mint requires an existing batch and a non-blank serial number.
- amount is a decimal string such as "1000", covering the full unsigned 64-bit
  range. It may be "0".
- Minting a batch again either overwrites the previous amount and serial
  (default) or fails with ALREADY_MINTED, depending on server configuration.

## Errors

| code | meaning |
|---|---|
| UNKNOWN_PROJECT | create_token_batch or list_project_batches named a project that was never created |
| UNKNOWN_BATCH | mint named a batch that was never created |
| NOT_FOUND | get_batch named a batch that was never created |
| INVALID_INPUT | blank serial number, bad activity filter |
| ALREADY_MINTED | second mint under the mint-once policy |
| REGISTRY_UNAVAILABLE | identifier space exhausted or internal state corrupted; writes stop |

## Activity

Every successful write appends one ledger entry (project_created, batch_created,
batch_minted) with a gap-free sequence number. get_recent_activity returns the
newest entries first; pass after_seq to page forward in order.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
