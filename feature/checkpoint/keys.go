package checkpoint

// FileKey is the work item key of one file in a stage.
func FileKey(st Stage, rel string) string {
	return string(st) + ":file:" + rel
}

// CopiedKey marks that the copy step of a file item finished.
func CopiedKey(st Stage, rel string) string {
	return FileKey(st, rel) + ":copied"
}

// DatabaseUnit is the cursor key prefix of the tables of one database. The
// table name is appended by the updater.
func DatabaseUnit(st Stage, db string) string {
	return string(st) + ":db:" + db
}
