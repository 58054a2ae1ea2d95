package ssocket

var StrUnpackMemory = strunpack
