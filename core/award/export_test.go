package award

// MockGenerateCode makes the service draw codes from gen until restore is called.
func MockGenerateCode(gen func() (string, error)) (restore func()) {
	orig := generateCode
	generateCode = gen
	return func() { generateCode = orig }
}
