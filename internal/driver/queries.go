package driver

var indexQueries = []string{
	"CREATE INDEX ON :Certificate(certificate_id);",
}

const (
	// ListCertificatesQuery returns every certificate node as a property map.
	ListCertificatesQuery = `
		MATCH (c:Certificate)
		RETURN c{.*} AS record
	`

	SaveCertificateQuery = `
		MERGE (c:Certificate {certificate_id: $certificate_id})
		SET c.name = $name,
			c.cgpa = $cgpa,
			c.branch = $branch,
			c.college = $college,
			c.signature_image_path = $signature_image_path
		RETURN c.certificate_id AS certificate_id
	`
)
